// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package ledger records runs, their steps and continuations, and derives
// execution traces from them.
package ledger

import (
	"context"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// auditEscalationThreshold is the consecutive-failure count after which
// audit failures log at Error.
const auditEscalationThreshold = 3

// Service is the run ledger.
type Service struct {
	runs   store.LedgerStore
	audit  store.AuditStore
	logger *slog.Logger
	now    func() time.Time

	auditFails atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithAudit enables LogAction.
func WithAudit(a store.AuditStore) Option { return func(s *Service) { s.audit = a } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a ledger over runs.
func New(runs store.LedgerStore, opts ...Option) *Service {
	s := &Service{runs: runs, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRequest opens a run.
type StartRequest struct {
	ConversationID string
	Role           string
	UserID         string
	RequestText    string
	Planning       map[string]any
}

// StartRun creates a running Run.
func (s *Service) StartRun(ctx context.Context, req StartRequest) (*store.Run, error) {
	now := s.now().UTC()
	run := &store.Run{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Role:           req.Role,
		UserID:         req.UserID,
		RequestText:    req.RequestText,
		Status:         store.RunStatusRunning,
		Planning:       maps.Clone(req.Planning),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun returns a run or RunNotFound.
func (s *Service) GetRun(ctx context.Context, id string) (*store.Run, error) {
	run, err := s.runs.GetRun(ctx, id)
	if syerr.IsNotFound(err) {
		return nil, syerr.New(syerr.CodeAgentRunNotFound, "run not found", syerr.FieldRunID(id))
	}
	return run, err
}

// LogStep appends one invocation attempt. Seq, ID and CreatedAt are filled
// in when empty.
func (s *Service) LogStep(ctx context.Context, step *store.Step) error {
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = s.now().UTC()
	}
	return s.runs.AppendStep(ctx, step)
}

// Steps returns a run's steps in invocation order.
func (s *Service) Steps(ctx context.Context, runID string) ([]*store.Step, error) {
	return s.runs.ListSteps(ctx, runID)
}

func (s *Service) update(ctx context.Context, runID string, fn func(*store.Run) error) (*store.Run, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := fn(run); err != nil {
		return nil, err
	}
	run.UpdatedAt = s.now().UTC()
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func notTerminal(run *store.Run) error {
	if run.Status.Terminal() {
		return syerr.New(syerr.CodeStoreConflict, "run already "+string(run.Status),
			syerr.FieldRunID(run.ID))
	}
	return nil
}

// Suspend marks a run as waiting on gateID.
func (s *Service) Suspend(ctx context.Context, runID, gateID string) (*store.Run, error) {
	return s.update(ctx, runID, func(run *store.Run) error {
		if err := notTerminal(run); err != nil {
			return err
		}
		run.Status = store.RunStatusAwaitingApproval
		if run.Planning == nil {
			run.Planning = map[string]any{}
		}
		run.Planning["pending_gate_id"] = gateID
		return nil
	})
}

// Resume reopens a suspended run.
func (s *Service) Resume(ctx context.Context, runID string) (*store.Run, error) {
	return s.update(ctx, runID, func(run *store.Run) error {
		if err := notTerminal(run); err != nil {
			return err
		}
		run.Status = store.RunStatusRunning
		delete(run.Planning, "pending_gate_id")
		return nil
	})
}

// Completion carries the final figures of a finished run.
type Completion struct {
	Outcome      string
	Rounds       int
	InputTokens  int
	OutputTokens int
}

// CompleteRun marks a run completed and records its latency.
func (s *Service) CompleteRun(ctx context.Context, runID string, c Completion) (*store.Run, error) {
	return s.finish(ctx, runID, store.RunStatusCompleted, c)
}

// FailRun marks a run failed. Steps already recorded are kept.
func (s *Service) FailRun(ctx context.Context, runID string, c Completion) (*store.Run, error) {
	return s.finish(ctx, runID, store.RunStatusFailed, c)
}

func (s *Service) finish(ctx context.Context, runID string, status store.RunStatus, c Completion) (*store.Run, error) {
	return s.update(ctx, runID, func(run *store.Run) error {
		if err := notTerminal(run); err != nil {
			return err
		}
		now := s.now().UTC()
		run.Status = status
		run.Outcome = c.Outcome
		run.Rounds += c.Rounds
		run.InputTokens += c.InputTokens
		run.OutputTokens += c.OutputTokens
		run.CompletedAt = now
		run.LatencyMs = now.Sub(run.CreatedAt).Milliseconds()
		delete(run.Planning, "pending_gate_id")
		return nil
	})
}

// AddUsage accumulates rounds and token usage on a run that is pausing.
func (s *Service) AddUsage(ctx context.Context, runID string, c Completion) error {
	_, err := s.update(ctx, runID, func(run *store.Run) error {
		run.Rounds += c.Rounds
		run.InputTokens += c.InputTokens
		run.OutputTokens += c.OutputTokens
		return nil
	})
	return err
}

// UpdatePlanning merges metadata into the run's planning map.
func (s *Service) UpdatePlanning(ctx context.Context, runID string, planning map[string]any) error {
	_, err := s.update(ctx, runID, func(run *store.Run) error {
		if run.Planning == nil {
			run.Planning = map[string]any{}
		}
		maps.Copy(run.Planning, planning)
		return nil
	})
	return err
}

// SaveContinuation persists the resumable state for gateID.
func (s *Service) SaveContinuation(ctx context.Context, gateID string, data []byte) error {
	return s.runs.SaveContinuation(ctx, gateID, data)
}

// LoadContinuation returns the state saved for gateID.
func (s *Service) LoadContinuation(ctx context.Context, gateID string) ([]byte, error) {
	data, err := s.runs.LoadContinuation(ctx, gateID)
	if syerr.IsNotFound(err) {
		return nil, syerr.New(syerr.CodeAgentContinuationNotFound, "no continuation for gate",
			syerr.FieldGateID(gateID))
	}
	return data, err
}

// Action is one agent audit record.
type Action struct {
	Action  string
	Actor   string
	RunID   string
	Domain  string
	Details map[string]any
	Result  string
}

// LogAction appends an audit entry. Failures are logged, never returned.
func (s *Service) LogAction(ctx context.Context, a Action) {
	if s.audit == nil {
		return
	}
	err := s.audit.Append(ctx, &store.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		Action:    a.Action,
		Actor:     a.Actor,
		RunID:     a.RunID,
		Domain:    a.Domain,
		Details:   a.Details,
		Result:    a.Result,
	})
	if err == nil {
		s.auditFails.Store(0)
		return
	}
	consecutive := s.auditFails.Add(1)
	attrs := []any{"action", a.Action, "run_id", a.RunID, "error", err, "consecutive_failures", consecutive}
	if consecutive >= auditEscalationThreshold {
		s.logger.ErrorContext(ctx, "agent audit failure (persistent)", attrs...)
	} else {
		s.logger.WarnContext(ctx, "agent audit failure (best-effort)", attrs...)
	}
}
