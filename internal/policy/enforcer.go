// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package policy authorizes each tool invocation: risk tier, per-user rate
// limit and the approved-gate requirement for high-risk actions.
package policy

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-dev/switchyard/internal/metrics"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// AuditLogEscalationThreshold is the number of consecutive audit append
// failures after which logging escalates from Warn to Error.
const AuditLogEscalationThreshold = 3

// DefaultWindow is the rate-limit window when none is configured.
const DefaultWindow = time.Hour

// Reason explains a denied decision.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonRateLimited      Reason = "rate_limited"
	ReasonApprovalRequired Reason = "approval_required"
)

// Request is one invocation to authorize.
type Request struct {
	// UserID may be empty for internal calls, which skip rate limiting.
	UserID string
	Role   registry.Role
	RunID  string
	Domain string
	Action string
	Params map[string]any
	Auth   Authorization
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allow            bool
	Binding          registry.Binding
	Tier             registry.RiskTier
	RequiresApproval bool
	Reason           Reason
	// Count is the post-increment rate counter, zero when not limited.
	Count int64
	// GateID is set when an approved gate admitted the call.
	GateID string
}

// Resolver looks up bindings. *registry.Registry implements it.
type Resolver interface {
	Resolve(domain, action string) (registry.Binding, error)
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithWindow sets the rate-limit window.
func WithWindow(d time.Duration) Option {
	return func(e *Enforcer) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithAudit records every decision to audit.
func WithAudit(audit store.AuditStore) Option {
	return func(e *Enforcer) { e.audit = audit }
}

// WithMetrics counts decisions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Enforcer) { e.metrics = m }
}

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enforcer) {
		if l != nil {
			e.logger = l
		}
	}
}

// Enforcer applies binding policy to invocations.
type Enforcer struct {
	resolver Resolver
	limiter  Limiter
	window   time.Duration
	audit    store.AuditStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	auditFailCount atomic.Int64
	auditFailTotal atomic.Int64
}

// NewEnforcer creates an Enforcer. limiter must not be nil.
func NewEnforcer(resolver Resolver, limiter Limiter, opts ...Option) *Enforcer {
	e := &Enforcer{
		resolver: resolver,
		limiter:  limiter,
		window:   DefaultWindow,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.audit == nil {
		e.logger.Warn("policy enforcer created without an audit store; decisions are not audited")
	}
	return e
}

// Window returns the configured rate-limit window.
func (e *Enforcer) Window() time.Duration { return e.window }

// AuditFailCount returns the consecutive audit failure count.
func (e *Enforcer) AuditFailCount() int64 { return e.auditFailCount.Load() }

// AuditFailTotal returns the cumulative audit failure count.
func (e *Enforcer) AuditFailTotal() int64 { return e.auditFailTotal.Load() }

// RateKey is the counter key for (user, domain, action).
func RateKey(userID, domain, action string) string {
	return userID + ":" + domain + "." + action
}

// Authorize decides whether req may execute now. Errors are reserved for
// unknown actions, limiter failures and approvals that do not match the
// invocation; a rate-limited or approval-required call is a Decision.
func (e *Enforcer) Authorize(ctx context.Context, req Request) (Decision, error) {
	b, err := e.resolver.Resolve(req.Domain, req.Action)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Binding:          b,
		Tier:             b.Policy.Tier,
		RequiresApproval: b.Policy.RequiresApproval || b.Policy.Tier == registry.TierExecuteHigh,
	}

	if req.UserID != "" {
		count, err := e.limiter.Hit(ctx, RateKey(req.UserID, req.Domain, req.Action), e.window)
		if err != nil {
			return Decision{}, syerr.Wrap(err, syerr.CodePolicyLimiterFailure, "rate limiter unavailable",
				syerr.FieldDomain(req.Domain), syerr.FieldAction(req.Action))
		}
		d.Count = count
		// The increment stands even when the call is rejected.
		if count > int64(b.Policy.RateLimit) {
			d.Reason = ReasonRateLimited
			e.record(ctx, req, d)
			return d, nil
		}
	}

	if !d.RequiresApproval {
		d.Allow = true
		e.record(ctx, req, d)
		return d, nil
	}

	if !req.Auth.IsAuthorized() {
		d.Reason = ReasonApprovalRequired
		e.record(ctx, req, d)
		return d, nil
	}

	gateID, _ := req.Auth.GateID()
	if !req.Auth.covers(Scope(req.RunID, req.Domain, req.Action, req.Params)) {
		e.audited(ctx, req, "gate_mismatch", map[string]any{"gate_id": gateID})
		return Decision{}, syerr.New(syerr.CodePolicyGateDenied,
			"approved gate does not cover this invocation",
			syerr.FieldGateID(gateID), syerr.FieldDomain(req.Domain), syerr.FieldAction(req.Action))
	}
	d.Allow = true
	d.GateID = gateID
	e.record(ctx, req, d)
	return d, nil
}

func (d Decision) outcome() string {
	switch {
	case d.Allow:
		return "allowed"
	case d.Reason != ReasonNone:
		return string(d.Reason)
	default:
		return "denied"
	}
}

func (e *Enforcer) record(ctx context.Context, req Request, d Decision) {
	e.metrics.RecordDecision(req.Domain, string(d.Tier), d.outcome())

	details := map[string]any{
		"action":            req.Action,
		"tier":              string(d.Tier),
		"requires_approval": d.RequiresApproval,
		"count":             d.Count,
	}
	if d.GateID != "" {
		details["gate_id"] = d.GateID
	}
	if req.Role != "" {
		details["role"] = string(req.Role)
	}
	e.audited(ctx, req, d.outcome(), details)
}

// audited appends a best-effort policy_decision entry.
func (e *Enforcer) audited(ctx context.Context, req Request, result string, details map[string]any) {
	if e.audit == nil {
		return
	}
	entry := &store.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		Action:    "policy_decision",
		Actor:     req.UserID,
		RunID:     req.RunID,
		Domain:    req.Domain,
		Details:   details,
		Result:    result,
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		consecutive := e.auditFailCount.Add(1)
		total := e.auditFailTotal.Add(1)
		attrs := []any{
			"domain", req.Domain,
			"action", req.Action,
			"error", err,
			"consecutive_failures", consecutive,
			"total_failures", total,
		}
		if consecutive >= AuditLogEscalationThreshold {
			e.logger.Error("audit log failure on policy decision (persistent)", attrs...)
		} else {
			e.logger.Warn("audit log failure on policy decision (best-effort)", attrs...)
		}
		return
	}
	e.auditFailCount.Store(0)
}
