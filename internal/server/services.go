// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package server

import (
	"context"
	"time"

	"github.com/switchyard-dev/switchyard/internal/agent"
	"github.com/switchyard-dev/switchyard/internal/ledger"
	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// TurnService runs agent turns, gate resumes and direct tool executions.
// *agent.Orchestrator implements it.
type TurnService interface {
	HandleTurn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
	Resume(ctx context.Context, gateID string, decision store.GateDecision, decidedBy string) (*agent.TurnResult, error)
	ExecuteTool(ctx context.Context, req agent.ExecuteRequest) (*agent.TurnResult, error)
	AvailableTools(role string) ([]registry.ToolSpec, error)
}

// GateService reads approval gates. *gate.Machine implements it.
type GateService interface {
	Get(ctx context.Context, id string) (*store.Gate, error)
	List(ctx context.Context, filter store.GateFilter) ([]*store.Gate, error)
}

// RunService reads the run ledger. *ledger.Service implements it.
type RunService interface {
	RecentRuns(ctx context.Context, filter store.RunFilter) ([]ledger.RunSummary, error)
	Trace(ctx context.Context, runID string) (*ledger.Trace, error)
}

// AuditService queries the audit log. store.AuditStore implements it.
type AuditService interface {
	Query(ctx context.Context, filter store.AuditFilter) ([]*store.AuditEntry, error)
}

// ProviderService reports reasoning provider health. *provider.Registry
// implements it.
type ProviderService interface {
	Statuses(ctx context.Context) []provider.ProviderStatus
}

// Services holds the dependencies injected into route handlers.
type Services struct {
	turns     TurnService
	gates     GateService
	runs      RunService
	audit     AuditService
	providers ProviderService // optional; nil = provider endpoint unavailable
}

// NewServices validates and groups the route dependencies.
func NewServices(turns TurnService, gates GateService, runs RunService, audit AuditService, providers ...ProviderService) (*Services, error) {
	if turns == nil {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "turn service is required")
	}
	if gates == nil {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "gate service is required")
	}
	if runs == nil {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "run service is required")
	}
	if audit == nil {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "audit service is required")
	}
	if len(providers) > 1 {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "at most one provider service may be supplied")
	}
	s := &Services{turns: turns, gates: gates, runs: runs, audit: audit}
	if len(providers) > 0 && providers[0] != nil {
		s.providers = providers[0]
	}
	return s, nil
}

// --- REST representations ---

// GateView is the REST representation of an approval gate.
type GateView struct {
	ID          string         `json:"id" doc:"Gate identifier"`
	RunID       string         `json:"run_id" doc:"Paused run"`
	StepID      string         `json:"step_id,omitempty" doc:"Step that raised the gate"`
	UserID      string         `json:"user_id"`
	Role        string         `json:"role"`
	ToolName    string         `json:"tool_name"`
	Domain      string         `json:"domain"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	RiskTier    string         `json:"risk_tier"`
	Params      map[string]any `json:"params,omitempty"`
	Decision    string         `json:"decision" doc:"pending, approved or rejected"`
	DecidedBy   string         `json:"decided_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
}

func gateView(g *store.Gate) GateView {
	v := GateView{
		ID:          g.ID,
		RunID:       g.RunID,
		StepID:      g.StepID,
		UserID:      g.UserID,
		Role:        g.Role,
		ToolName:    g.ToolName,
		Domain:      g.Scope.Domain,
		Action:      g.Scope.Action,
		Description: g.Description,
		RiskTier:    g.RiskTier,
		Params:      g.Params,
		Decision:    string(g.Decision),
		DecidedBy:   g.DecidedBy,
		CreatedAt:   g.CreatedAt,
	}
	if !g.DecidedAt.IsZero() {
		at := g.DecidedAt
		v.DecidedAt = &at
	}
	return v
}

// RunView is the REST representation of a run.
type RunView struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"`
	UserID         string         `json:"user_id"`
	RequestText    string         `json:"request_text"`
	Status         string         `json:"status"`
	Outcome        string         `json:"outcome,omitempty"`
	LatencyMs      int64          `json:"latency_ms"`
	Rounds         int            `json:"rounds"`
	InputTokens    int            `json:"input_tokens"`
	OutputTokens   int            `json:"output_tokens"`
	Planning       map[string]any `json:"planning,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

func runView(r *store.Run) RunView {
	v := RunView{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           r.Role,
		UserID:         r.UserID,
		RequestText:    r.RequestText,
		Status:         string(r.Status),
		Outcome:        r.Outcome,
		LatencyMs:      r.LatencyMs,
		Rounds:         r.Rounds,
		InputTokens:    r.InputTokens,
		OutputTokens:   r.OutputTokens,
		Planning:       r.Planning,
		CreatedAt:      r.CreatedAt,
	}
	if !r.CompletedAt.IsZero() {
		at := r.CompletedAt
		v.CompletedAt = &at
	}
	return v
}

// StepView is the REST representation of one invocation attempt.
type StepView struct {
	ID            string         `json:"id"`
	Seq           int            `json:"seq"`
	ToolName      string         `json:"tool_name"`
	Domain        string         `json:"domain"`
	Action        string         `json:"action"`
	RiskTier      string         `json:"risk_tier"`
	Params        map[string]any `json:"params,omitempty"`
	ResultSummary string         `json:"result_summary"`
	Outcome       string         `json:"outcome"`
	LatencyMs     int64          `json:"latency_ms"`
	GateID        string         `json:"gate_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func stepView(s *store.Step) StepView {
	return StepView{
		ID:            s.ID,
		Seq:           s.Seq,
		ToolName:      s.ToolName,
		Domain:        s.Domain,
		Action:        s.Action,
		RiskTier:      s.RiskTier,
		Params:        s.Params,
		ResultSummary: s.ResultSummary,
		Outcome:       string(s.Outcome),
		LatencyMs:     s.LatencyMs,
		GateID:        s.GateID,
		CreatedAt:     s.CreatedAt,
	}
}

// RunSummaryView is a run with its execution figures.
type RunSummaryView struct {
	Run     RunView        `json:"run"`
	Summary ledger.Summary `json:"summary"`
}

// TraceView is the full execution record of a run.
type TraceView struct {
	Run      RunView                `json:"run"`
	Steps    []StepView             `json:"steps"`
	Gates    []GateView             `json:"gates"`
	Summary  ledger.Summary         `json:"summary"`
	Timeline []ledger.TimelineEvent `json:"timeline"`
}

func traceView(t *ledger.Trace) TraceView {
	v := TraceView{
		Run:      runView(t.Run),
		Steps:    make([]StepView, 0, len(t.Steps)),
		Gates:    make([]GateView, 0, len(t.Gates)),
		Summary:  t.Summary,
		Timeline: t.Timeline,
	}
	for _, s := range t.Steps {
		v.Steps = append(v.Steps, stepView(s))
	}
	for _, g := range t.Gates {
		v.Gates = append(v.Gates, gateView(g))
	}
	return v
}

// AuditEntryView is the REST representation of an audit entry.
type AuditEntryView struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	RunID     string         `json:"run_id,omitempty"`
	Domain    string         `json:"domain,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Result    string         `json:"result"`
}

func auditView(e *store.AuditEntry) AuditEntryView {
	return AuditEntryView{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Action:    e.Action,
		Actor:     e.Actor,
		RunID:     e.RunID,
		Domain:    e.Domain,
		Details:   e.Details,
		Result:    e.Result,
	}
}
