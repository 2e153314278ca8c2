// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package store

import (
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Valid reports whether the role is a known message role.
func (r MessageRole) Valid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem, MessageRoleTool:
		return true
	default:
		return false
	}
}

// Valid reports whether the outcome is a known step outcome.
func (o StepOutcome) Valid() bool {
	switch o {
	case StepOutcomeExecuted, StepOutcomeError, StepOutcomeRateLimited, StepOutcomeApprovalRequired:
		return true
	default:
		return false
	}
}

// Validate checks that the Conversation has all required fields set.
func (c Conversation) Validate() error {
	if c.ID == "" {
		return syerr.New(syerr.CodeStoreInvalidInput, "conversation: ID is required")
	}
	if c.Role == "" || c.UserID == "" {
		return syerr.New(syerr.CodeStoreInvalidInput, "conversation: Role and UserID are required")
	}
	if c.CreatedAt.IsZero() {
		return syerr.New(syerr.CodeStoreInvalidInput, "conversation: CreatedAt is required")
	}
	return nil
}

// Validate checks that the Message has all required fields set correctly.
func (m Message) Validate() error {
	if m.ID == "" {
		return syerr.New(syerr.CodeStoreInvalidInput, "message: ID is required")
	}
	if !m.Role.Valid() {
		return syerr.Errorf(syerr.CodeStoreInvalidInput, "message: invalid role %q", m.Role)
	}
	// Tool results are keyed by the call they answer.
	if m.Role == MessageRoleTool && m.ToolCallID == "" {
		return syerr.New(syerr.CodeStoreInvalidInput, "message: ToolCallID is required for tool messages")
	}
	if m.Role != MessageRoleTool && m.Content == "" && len(m.ToolCalls) == 0 {
		return syerr.Errorf(syerr.CodeStoreInvalidInput, "message: Content is required for role %q", m.Role)
	}
	return nil
}

// Validate checks that the Run is attached to a conversation.
func (r Run) Validate() error {
	if r.ID == "" {
		return syerr.New(syerr.CodeStoreInvalidInput, "run: ID is required")
	}
	if r.ConversationID == "" {
		return syerr.New(syerr.CodeStoreInvalidInput, "run: ConversationID is required")
	}
	if r.CreatedAt.IsZero() {
		return syerr.New(syerr.CodeStoreInvalidInput, "run: CreatedAt is required")
	}
	return nil
}

// Validate checks that the Step belongs to a run and has a known outcome.
func (s Step) Validate() error {
	if s.ID == "" || s.RunID == "" {
		return syerr.New(syerr.CodeStoreInvalidInput, "step: ID and RunID are required")
	}
	if !s.Outcome.Valid() {
		return syerr.Errorf(syerr.CodeStoreInvalidInput, "step: invalid outcome %q", s.Outcome)
	}
	return nil
}

// Validate checks that a new Gate is pending and scoped to its run.
func (g Gate) Validate() error {
	if g.ID == "" || g.RunID == "" {
		return syerr.New(syerr.CodeStoreInvalidInput, "gate: ID and RunID are required")
	}
	if g.Decision != GateDecisionPending {
		return syerr.Errorf(syerr.CodeStoreInvalidInput, "gate: new gates must be pending, got %q", g.Decision)
	}
	if g.Scope.RunID != g.RunID {
		return syerr.New(syerr.CodeStoreInvalidInput, "gate: scope run does not match gate run")
	}
	return nil
}
