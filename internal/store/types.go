// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package store

import (
	"encoding/json"
	"time"
)

// --- Conversation types ---

// Conversation is the per-(role, user) message history.
type Conversation struct {
	ID        string
	Role      string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRole identifies the sender of a message in a conversation.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
	MessageRoleTool      MessageRole = "tool"
)

// ToolCall is a tool-use request recorded on an assistant message so the
// transcript can be replayed to a provider.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Message represents a single turn in a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	ToolCallID     string
	ToolName       string
	ToolCalls      []ToolCall
	CreatedAt      time.Time
	Metadata       map[string]string
}

// --- Ledger types ---

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusRunning          RunStatus = "running"
	RunStatusAwaitingApproval RunStatus = "awaiting_approval"
	RunStatusCompleted        RunStatus = "completed"
	RunStatusFailed           RunStatus = "failed"
)

// Terminal reports whether no further steps may be appended to the run.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Run is one end-to-end orchestration attempt for a single user request.
type Run struct {
	ID             string
	ConversationID string
	Role           string
	UserID         string
	RequestText    string
	Status         RunStatus
	// Outcome holds the final response text, or a short failure reason.
	Outcome      string
	LatencyMs    int64
	Rounds       int
	InputTokens  int
	OutputTokens int
	Planning     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  time.Time
}

// StepOutcome records how one invocation attempt ended.
type StepOutcome string

const (
	StepOutcomeExecuted         StepOutcome = "executed"
	StepOutcomeError            StepOutcome = "error"
	StepOutcomeRateLimited      StepOutcome = "rate_limited"
	StepOutcomeApprovalRequired StepOutcome = "approval_required"
)

// Step is one recorded tool-invocation attempt within a Run.
type Step struct {
	ID            string
	RunID         string
	Seq           int
	Domain        string
	Action        string
	ToolName      string
	RiskTier      string
	Params        map[string]any
	ResultSummary string
	Outcome       StepOutcome
	LatencyMs     int64
	GateID        string
	CreatedAt     time.Time
}

// GateDecision is the state of an approval gate.
type GateDecision string

const (
	GateDecisionPending  GateDecision = "pending"
	GateDecisionApproved GateDecision = "approved"
	GateDecisionRejected GateDecision = "rejected"
)

// Valid reports whether d is a known decision.
func (d GateDecision) Valid() bool {
	switch d {
	case GateDecisionPending, GateDecisionApproved, GateDecisionRejected:
		return true
	default:
		return false
	}
}

// GateScope binds a gate to one exact invocation.
type GateScope struct {
	RunID        string `json:"run_id"`
	Domain       string `json:"domain"`
	Action       string `json:"action"`
	ParamsDigest string `json:"params_digest"`
}

// Gate is a pending-approval record for one high-risk invocation.
type Gate struct {
	ID          string
	RunID       string
	StepID      string
	UserID      string
	Role        string
	Scope       GateScope
	ToolName    string
	Description string
	RiskTier    string
	Params      map[string]any
	Decision    GateDecision
	DecidedBy   string
	CreatedAt   time.Time
	DecidedAt   time.Time
}

// Pending reports whether the gate still awaits a decision.
func (g *Gate) Pending() bool {
	return g.Decision == GateDecisionPending
}

// --- Audit types ---

// AuditEntry records a security-relevant action in the system.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Action    string
	Actor     string
	RunID     string
	Domain    string
	Details   map[string]any
	Result    string
}

// --- Query options ---

// AuditFilter specifies criteria for querying audit entries.
type AuditFilter struct {
	Action string
	Actor  string
	RunID  string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// RunFilter specifies criteria for listing runs. Results are newest first.
type RunFilter struct {
	UserID         string
	ConversationID string
	Status         RunStatus
	Limit          int
	Offset         int
}

// GateFilter specifies criteria for listing gates. Results are oldest first.
type GateFilter struct {
	RunID    string
	UserID   string
	Decision GateDecision
	Limit    int
	Offset   int
}
