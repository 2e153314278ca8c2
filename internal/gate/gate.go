// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package gate implements the approval gate state machine. A gate starts
// pending and moves exactly once to approved or rejected.
package gate

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-dev/switchyard/internal/metrics"
	"github.com/switchyard-dev/switchyard/internal/notify"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// sideEffectEscalationThreshold matches the policy enforcer's audit
// escalation.
const sideEffectEscalationThreshold = 3

// CreateRequest describes a gate to raise.
type CreateRequest struct {
	RunID       string
	StepID      string
	UserID      string
	Role        registry.Role
	Scope       store.GateScope
	ToolName    string
	Description string
	RiskTier    registry.RiskTier
	Params      map[string]any
}

// Option configures a Machine.
type Option func(*Machine)

// WithAudit records gate transitions.
func WithAudit(a store.AuditStore) Option { return func(m *Machine) { m.audit = a } }

// WithNotifier publishes gate events.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Machine) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithMetrics counts gate events.
func WithMetrics(mt *metrics.Metrics) Option { return func(m *Machine) { m.metrics = mt } }

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

// Machine creates and resolves gates over the ledger store.
type Machine struct {
	gates    store.LedgerStore
	audit    store.AuditStore
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	sideEffectFails atomic.Int64
}

// NewMachine creates a Machine.
func NewMachine(gates store.LedgerStore, opts ...Option) *Machine {
	m := &Machine{
		gates:    gates,
		notifier: notify.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ParseDecision validates a terminal decision supplied by an approver.
func ParseDecision(s string) (store.GateDecision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve":
		return store.GateDecisionApproved, nil
	case "rejected", "reject":
		return store.GateDecisionRejected, nil
	default:
		return "", syerr.New(syerr.CodeGateDecisionInvalid,
			"decision must be approved or rejected", syerr.Field("decision", s))
	}
}

// Create raises a pending gate.
func (m *Machine) Create(ctx context.Context, req CreateRequest) (*store.Gate, error) {
	g := &store.Gate{
		ID:          uuid.NewString(),
		RunID:       req.RunID,
		StepID:      req.StepID,
		UserID:      req.UserID,
		Role:        string(req.Role),
		Scope:       req.Scope,
		ToolName:    req.ToolName,
		Description: req.Description,
		RiskTier:    string(req.RiskTier),
		Params:      req.Params,
		Decision:    store.GateDecisionPending,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.gates.CreateGate(ctx, g); err != nil {
		return nil, err
	}

	m.metrics.GateCreated()
	m.sideEffects(ctx, g, notify.EventGateCreated, g.UserID)
	m.logger.InfoContext(ctx, "gate created",
		"gate_id", g.ID, "run_id", g.RunID, "tool", g.ToolName, "risk_tier", g.RiskTier)
	return g, nil
}

// Resolve moves a pending gate to decision. It fails with GateNotFound for
// an unknown id and GateAlreadyResolved when the gate is no longer pending;
// the first decision is never overwritten.
func (m *Machine) Resolve(ctx context.Context, id string, decision store.GateDecision, decidedBy string) (*store.Gate, error) {
	if decision != store.GateDecisionApproved && decision != store.GateDecisionRejected {
		return nil, syerr.New(syerr.CodeGateDecisionInvalid,
			"decision must be approved or rejected", syerr.FieldGateID(id))
	}

	g, err := m.gates.ResolveGate(ctx, id, decision, decidedBy, m.now().UTC())
	switch {
	case syerr.IsNotFound(err):
		return nil, syerr.New(syerr.CodeGateNotFound, "gate not found", syerr.FieldGateID(id))
	case syerr.IsConflict(err):
		fields := []syerr.Attr{syerr.FieldGateID(id)}
		if current, getErr := m.gates.GetGate(ctx, id); getErr == nil {
			fields = append(fields, syerr.Field("decision", string(current.Decision)),
				syerr.Field("decided_by", current.DecidedBy))
		}
		return nil, syerr.New(syerr.CodeGateAlreadyResolved, "gate already resolved", fields...)
	case err != nil:
		return nil, err
	}

	m.metrics.GateResolved(string(g.Decision))
	m.sideEffects(ctx, g, notify.EventGateResolved, decidedBy)
	m.logger.InfoContext(ctx, "gate resolved",
		"gate_id", g.ID, "run_id", g.RunID, "decision", g.Decision, "decided_by", decidedBy)
	return g, nil
}

// Get returns a gate or GateNotFound.
func (m *Machine) Get(ctx context.Context, id string) (*store.Gate, error) {
	g, err := m.gates.GetGate(ctx, id)
	if syerr.IsNotFound(err) {
		return nil, syerr.New(syerr.CodeGateNotFound, "gate not found", syerr.FieldGateID(id))
	}
	return g, err
}

// List returns gates matching filter, oldest first.
func (m *Machine) List(ctx context.Context, filter store.GateFilter) ([]*store.Gate, error) {
	return m.gates.ListGates(ctx, filter)
}

// sideEffects writes the audit entry and publishes the event. Neither may
// fail the transition, which is already durable.
func (m *Machine) sideEffects(ctx context.Context, g *store.Gate, event, actor string) {
	var failed []error

	if m.audit != nil {
		err := m.audit.Append(ctx, &store.AuditEntry{
			ID:        uuid.NewString(),
			Timestamp: m.now().UTC(),
			Action:    event,
			Actor:     actor,
			RunID:     g.RunID,
			Domain:    g.Scope.Domain,
			Details: map[string]any{
				"gate_id":   g.ID,
				"tool":      g.ToolName,
				"risk_tier": g.RiskTier,
			},
			Result: string(g.Decision),
		})
		if err != nil {
			failed = append(failed, err)
		}
	}

	err := m.notifier.Publish(ctx, notify.Event{
		Type:        event,
		GateID:      g.ID,
		RunID:       g.RunID,
		UserID:      g.UserID,
		Role:        g.Role,
		ToolName:    g.ToolName,
		Description: g.Description,
		RiskTier:    g.RiskTier,
		Decision:    string(g.Decision),
		DecidedBy:   g.DecidedBy,
		At:          m.now().UTC(),
	})
	if err != nil {
		m.metrics.NotifyFailed()
		failed = append(failed, err)
	}

	if len(failed) == 0 {
		m.sideEffectFails.Store(0)
		return
	}
	consecutive := m.sideEffectFails.Add(int64(len(failed)))
	attrs := []any{"gate_id", g.ID, "event", event, "error", syerr.Join(failed...), "consecutive_failures", consecutive}
	if consecutive >= sideEffectEscalationThreshold {
		m.logger.ErrorContext(ctx, "gate side effect failure (persistent)", attrs...)
	} else {
		m.logger.WarnContext(ctx, "gate side effect failure (best-effort)", attrs...)
	}
}
