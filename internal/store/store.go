// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package store

import (
	"context"
	"time"
)

// Store groups the sub-stores of one storage backend.
type Store interface {
	Conversations() ConversationStore
	Ledger() LedgerStore
	Audit() AuditStore
	Counters() CounterStore
	Close() error
}

// ConversationStore manages conversations and the active message window.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// FindConversation returns the conversation for (role, userID) or a
	// not-found error.
	FindConversation(ctx context.Context, role, userID string) (*Conversation, error)

	AppendMessage(ctx context.Context, conversationID string, msg *Message) error
	GetActiveWindow(ctx context.Context, conversationID string, limit int) ([]*Message, error)
}

// LedgerStore persists runs, their steps and gates, and the continuation
// captured when a run pauses on a gate.
type LedgerStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)

	// AppendStep assigns the next sequence number within the run.
	AppendStep(ctx context.Context, step *Step) error
	ListSteps(ctx context.Context, runID string) ([]*Step, error)

	CreateGate(ctx context.Context, gate *Gate) error
	GetGate(ctx context.Context, id string) (*Gate, error)
	ListGates(ctx context.Context, filter GateFilter) ([]*Gate, error)
	// ResolveGate moves a pending gate to decision. It fails with a conflict
	// error when the gate is no longer pending.
	ResolveGate(ctx context.Context, id string, decision GateDecision, decidedBy string, at time.Time) (*Gate, error)

	SaveContinuation(ctx context.Context, gateID string, data []byte) error
	LoadContinuation(ctx context.Context, gateID string) ([]byte, error)
}

// AuditStore manages the audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// CounterStore holds fixed-window rate counters.
type CounterStore interface {
	// Increment adds one to the counter for (key, windowStart) and returns
	// the post-increment value.
	Increment(ctx context.Context, key string, windowStart time.Time) (int64, error)
	// Prune drops counters whose window started before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
}
