// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Authorization is the approval context an invocation carries. The zero
// value is Unauthorized. An authorized value can only be built from an
// approved gate, so approval cannot be forged from a bare id.
type Authorization struct {
	gateID string
	scope  store.GateScope
}

// Unauthorized returns the empty authorization.
func Unauthorized() Authorization { return Authorization{} }

// Authorized builds an authorization from an approved gate.
func Authorized(g *store.Gate) (Authorization, error) {
	if g == nil {
		return Authorization{}, syerr.New(syerr.CodePolicyInvalidInput, "authorization requires a gate")
	}
	if g.Decision != store.GateDecisionApproved {
		return Authorization{}, syerr.New(syerr.CodePolicyGateDenied,
			"gate is not approved",
			syerr.FieldGateID(g.ID), syerr.Field("decision", string(g.Decision)))
	}
	return Authorization{gateID: g.ID, scope: g.Scope}, nil
}

// GateID returns the approved gate id, if any.
func (a Authorization) GateID() (string, bool) {
	return a.gateID, a.gateID != ""
}

// IsAuthorized reports whether a carries an approved gate.
func (a Authorization) IsAuthorized() bool { return a.gateID != "" }

// covers reports whether the approved scope matches the invocation exactly.
func (a Authorization) covers(s store.GateScope) bool {
	return a.gateID != "" && a.scope == s
}

// Scope is the invocation context a gate approves.
func Scope(runID, domain, action string, params map[string]any) store.GateScope {
	return store.GateScope{
		RunID:        runID,
		Domain:       domain,
		Action:       action,
		ParamsDigest: ParamsDigest(params),
	}
}

// ParamsDigest is a stable hash of params. encoding/json sorts map keys, so
// equal values digest equally across a JSON round trip.
func ParamsDigest(params map[string]any) string {
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		// Unencodable params can never match a stored scope.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
