// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package agent

import (
	"encoding/json"

	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

const continuationVersion = 1

// PendingCall is the gated invocation a run is paused on.
type PendingCall struct {
	CallID   string         `json:"call_id"`
	ToolName string         `json:"tool_name"`
	Domain   string         `json:"domain"`
	Action   string         `json:"action"`
	Params   map[string]any `json:"params"`
}

// Continuation is everything needed to re-enter a paused run: the exact
// transcript sent to the provider, the pending call and the calls from the
// same round that were deferred behind it.
type Continuation struct {
	Version        int                 `json:"version"`
	RunID          string              `json:"run_id"`
	ConversationID string              `json:"conversation_id"`
	Role           registry.Role       `json:"role"`
	UserID         string              `json:"user_id"`
	Model          string              `json:"model,omitempty"`
	Transcript     []provider.Message  `json:"transcript"`
	Pending        PendingCall         `json:"pending"`
	Deferred       []provider.ToolCall `json:"deferred,omitempty"`
	Rounds         int                 `json:"rounds"`
}

func (c *Continuation) encode() ([]byte, error) {
	c.Version = continuationVersion
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeAgentContinuationInvalid, "encoding continuation",
			syerr.FieldRunID(c.RunID))
	}
	return raw, nil
}

func decodeContinuation(gateID string, raw []byte) (*Continuation, error) {
	var c Continuation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, syerr.Wrap(err, syerr.CodeAgentContinuationInvalid, "decoding continuation",
			syerr.FieldGateID(gateID))
	}
	if c.Version != continuationVersion {
		return nil, syerr.New(syerr.CodeAgentContinuationInvalid, "unsupported continuation version",
			syerr.FieldGateID(gateID), syerr.Field("version", c.Version))
	}
	if c.RunID == "" || c.Pending.Domain == "" || c.Pending.Action == "" {
		return nil, syerr.New(syerr.CodeAgentContinuationInvalid, "continuation is incomplete",
			syerr.FieldGateID(gateID))
	}
	return &c, nil
}
