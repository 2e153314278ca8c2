// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package notify publishes gate lifecycle events so approver surfaces can
// react without polling.
package notify

import (
	"context"
	"time"
)

// Event types.
const (
	EventGateCreated  = "gate.created"
	EventGateResolved = "gate.resolved"
)

// Event is one gate lifecycle notification.
type Event struct {
	Type        string    `json:"type"`
	GateID      string    `json:"gate_id"`
	RunID       string    `json:"run_id"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	ToolName    string    `json:"tool_name"`
	Description string    `json:"description,omitempty"`
	RiskTier    string    `json:"risk_tier"`
	Decision    string    `json:"decision"`
	DecidedBy   string    `json:"decided_by,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier delivers events. Publication is best-effort for callers.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
