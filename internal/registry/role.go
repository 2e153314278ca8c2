// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package registry

import (
	"strings"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Role is the caller persona a turn is handled for.
type Role string

const (
	RoleDriver    Role = "driver"
	RoleRecruiter Role = "recruiter"
	RoleCarrier   Role = "carrier"
	RoleAdmin     Role = "admin"
)

// AllRoles lists every known role in display order.
func AllRoles() []Role {
	return []Role{RoleDriver, RoleRecruiter, RoleCarrier, RoleAdmin}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleDriver, RoleRecruiter, RoleCarrier, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole validates a caller-supplied role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", syerr.New(syerr.CodeAgentRoleInvalid, "unknown role", syerr.FieldRole(s))
	}
	return r, nil
}

// RiskTier classifies the impact of an action.
type RiskTier string

const (
	TierRead        RiskTier = "read"
	TierSuggest     RiskTier = "suggest"
	TierExecuteLow  RiskTier = "execute_low"
	TierExecuteHigh RiskTier = "execute_high"
)

// Valid reports whether t is a known tier.
func (t RiskTier) Valid() bool {
	switch t {
	case TierRead, TierSuggest, TierExecuteLow, TierExecuteHigh:
		return true
	default:
		return false
	}
}

// Policy is the authorization policy attached to a binding.
type Policy struct {
	Tier             RiskTier
	RequiresApproval bool
	// RateLimit is the number of invocations allowed per user per window.
	RateLimit int
}

// Read returns a read-tier policy.
func Read(rate int) Policy { return Policy{Tier: TierRead, RateLimit: rate} }

// Suggest returns a suggest-tier policy. Suggestions have no side effects
// beyond producing a draft.
func Suggest(rate int) Policy { return Policy{Tier: TierSuggest, RateLimit: rate} }

// ExecuteLow returns a low-impact execute policy.
func ExecuteLow(rate int) Policy { return Policy{Tier: TierExecuteLow, RateLimit: rate} }

// ExecuteHigh returns a high-impact execute policy, which always requires
// approval.
func ExecuteHigh(rate int) Policy {
	return Policy{Tier: TierExecuteHigh, RequiresApproval: true, RateLimit: rate}
}
