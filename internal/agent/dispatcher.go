// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/switchyard-dev/switchyard/internal/gate"
	"github.com/switchyard-dev/switchyard/internal/ledger"
	"github.com/switchyard-dev/switchyard/internal/metrics"
	"github.com/switchyard-dev/switchyard/internal/policy"
	"github.com/switchyard-dev/switchyard/internal/redact"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// DefaultToolTimeout bounds one collaborator call.
const DefaultToolTimeout = 30 * time.Second

// maxSummaryLen bounds result summaries stored on steps.
const maxSummaryLen = 1024

// genericFailure is the only collaborator error text that leaves the
// dispatcher.
const genericFailure = "the requested action failed"

var tracer trace.Tracer = otel.Tracer("github.com/switchyard-dev/switchyard/internal/agent")

// Call is one tool-use request: a router tool with {action, params} or a
// flat tool with its params as input.
type Call struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// Invocation is the caller context a call executes under.
type Invocation struct {
	UserID string
	// Role limits resolution to domains visible to it. Empty skips the
	// check for internal calls.
	Role  registry.Role
	RunID string
	Auth  policy.Authorization
}

// ToolResult is the outcome of one dispatched call. Exactly one step is
// recorded for it.
type ToolResult struct {
	Outcome  store.StepOutcome `json:"outcome"`
	ToolName string            `json:"tool_name"`
	Domain   string            `json:"domain"`
	Action   string            `json:"action"`
	Tier     registry.RiskTier `json:"risk_tier"`
	Params   map[string]any    `json:"params,omitempty"`
	Output   any               `json:"output,omitempty"`
	Error    string            `json:"error,omitempty"`
	GateID   string            `json:"gate_id,omitempty"`
	StepID   string            `json:"step_id"`

	// Err is the normalized error behind a rate_limited or error outcome.
	Err error `json:"-"`
}

// Content renders the result as the tool message fed back to the provider.
func (r ToolResult) Content() string {
	switch r.Outcome {
	case store.StepOutcomeExecuted:
		return renderOutput(r.Output)
	case store.StepOutcomeRateLimited:
		return fmt.Sprintf("error: rate limit exceeded for %s; try again later", r.Action)
	case store.StepOutcomeApprovalRequired:
		return fmt.Sprintf("pending: %s is awaiting human approval", r.Action)
	default:
		return "error: " + r.Error
	}
}

func renderOutput(out any) string {
	switch v := out.(type) {
	case nil:
		return "ok"
	case string:
		return v
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("%v", out)
	}
	return string(raw)
}

// DispatcherConfig holds dependencies for Dispatcher.
type DispatcherConfig struct {
	Registry *registry.Registry
	Enforcer *policy.Enforcer
	Invoker  registry.Invoker
	Gates    *gate.Machine
	Ledger   *ledger.Service
	Metrics  *metrics.Metrics
	// Redactor masks step summaries and gate descriptions; nil uses
	// redact.Default().
	Redactor *redact.Redactor
	// Timeout bounds each collaborator call; zero uses DefaultToolTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Dispatcher resolves, authorizes and executes tool calls.
type Dispatcher struct {
	registry *registry.Registry
	enforcer *policy.Enforcer
	invoker  registry.Invoker
	gates    *gate.Machine
	ledger   *ledger.Service
	metrics  *metrics.Metrics
	redactor *redact.Redactor
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. Every dependency except Metrics and
// Logger is required.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	var missing []string
	if cfg.Registry == nil {
		missing = append(missing, "Registry")
	}
	if cfg.Enforcer == nil {
		missing = append(missing, "Enforcer")
	}
	if cfg.Invoker == nil {
		missing = append(missing, "Invoker")
	}
	if cfg.Gates == nil {
		missing = append(missing, "Gates")
	}
	if cfg.Ledger == nil {
		missing = append(missing, "Ledger")
	}
	if len(missing) > 0 {
		return nil, syerr.Errorf(syerr.CodeAgentLoopInvalidInput, "dispatcher: missing %v", missing)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	redactor := cfg.Redactor
	if redactor == nil {
		redactor = redact.Default()
	}
	return &Dispatcher{
		registry: cfg.Registry,
		enforcer: cfg.Enforcer,
		invoker:  cfg.Invoker,
		gates:    cfg.Gates,
		ledger:   cfg.Ledger,
		metrics:  cfg.Metrics,
		redactor: redactor,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

func unknownAction(name string) error {
	return syerr.New(syerr.CodeRegistryActionNotFound,
		fmt.Sprintf("Unknown action '%s'", name), syerr.FieldAction(name))
}

// Execute resolves call by tool name and dispatches it. An unknown or
// invisible action returns ActionNotFound and records no step; every other
// attempt records exactly one.
func (d *Dispatcher) Execute(ctx context.Context, call Call, inv Invocation) (ToolResult, error) {
	b, params, err := d.registry.ResolveTool(call.Name, call.Input)
	if err != nil {
		return ToolResult{}, err
	}
	return d.dispatch(ctx, call.Name, b, params, inv)
}

// ExecuteAction dispatches a known (domain, action) pair, as when replaying
// an approved invocation.
func (d *Dispatcher) ExecuteAction(ctx context.Context, toolName, domain, action string, params map[string]any, inv Invocation) (ToolResult, error) {
	b, err := d.registry.Resolve(domain, action)
	if err != nil {
		return ToolResult{}, err
	}
	if params == nil {
		params = map[string]any{}
	}
	return d.dispatch(ctx, toolName, b, params, inv)
}

func (d *Dispatcher) dispatch(ctx context.Context, toolName string, b registry.Binding, params map[string]any, inv Invocation) (ToolResult, error) {
	if inv.Role != "" && !d.registry.VisibleTo(inv.Role, b.Domain) {
		return ToolResult{}, unknownAction(toolName)
	}

	ctx, span := tracer.Start(ctx, "agent.execute_tool", trace.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("tool.domain", b.Domain),
		attribute.String("tool.action", b.Action),
		attribute.String("run.id", inv.RunID),
	))
	defer span.End()

	res := ToolResult{
		ToolName: toolName,
		Domain:   b.Domain,
		Action:   b.Action,
		Tier:     b.Policy.Tier,
		Params:   params,
		StepID:   uuid.NewString(),
	}

	dec, err := d.enforcer.Authorize(ctx, policy.Request{
		UserID: inv.UserID,
		Role:   inv.Role,
		RunID:  inv.RunID,
		Domain: b.Domain,
		Action: b.Action,
		Params: params,
		Auth:   inv.Auth,
	})
	if err != nil {
		res.Outcome = store.StepOutcomeError
		res.Error = "authorization failed"
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization failed")
		if logErr := d.logStep(ctx, inv, res, 0); logErr != nil {
			return res, errors.Join(err, logErr)
		}
		return res, err
	}

	switch {
	case dec.Reason == policy.ReasonRateLimited:
		res.Outcome = store.StepOutcomeRateLimited
		res.Error = "rate limit exceeded"
		res.Err = syerr.New(syerr.CodePolicyRateExceeded, "rate limit exceeded",
			syerr.FieldUserID(inv.UserID), syerr.FieldDomain(b.Domain), syerr.FieldAction(b.Action),
			syerr.Field("count", dec.Count), syerr.Field("limit", b.Policy.RateLimit))

	case dec.Reason == policy.ReasonApprovalRequired:
		g, err := d.gates.Create(ctx, gate.CreateRequest{
			RunID:       inv.RunID,
			StepID:      res.StepID,
			UserID:      inv.UserID,
			Role:        inv.Role,
			Scope:       policy.Scope(inv.RunID, b.Domain, b.Action, params),
			ToolName:    toolName,
			Description: d.redactor.Redact(describe(b, params)),
			RiskTier:    b.Policy.Tier,
			Params:      params,
		})
		if err != nil {
			span.RecordError(err)
			return res, err
		}
		res.Outcome = store.StepOutcomeApprovalRequired
		res.GateID = g.ID

	default:
		start := time.Now()
		out, err := d.invoke(ctx, b, inv.UserID, params)
		latency := time.Since(start)
		res.GateID = dec.GateID
		if err != nil {
			res.Outcome = store.StepOutcomeError
			res.Error = genericFailure
			res.Err = err
			span.RecordError(err)
			span.SetStatus(codes.Error, genericFailure)
		} else {
			res.Outcome = store.StepOutcomeExecuted
			res.Output = out
		}
		d.metrics.RecordInvocation(b.Domain, string(res.Outcome), latency)
		return res, d.logStep(ctx, inv, res, latency)
	}

	d.metrics.RecordInvocation(b.Domain, string(res.Outcome), 0)
	span.SetAttributes(attribute.String("tool.outcome", string(res.Outcome)))
	return res, d.logStep(ctx, inv, res, 0)
}

// invoke calls the collaborator under the tool timeout. Whatever it returns
// is logged here and replaced by a normalized error.
func (d *Dispatcher) invoke(ctx context.Context, b registry.Binding, userID string, params map[string]any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.invoker.Invoke(callCtx, b.Target, b.Args.Apply(userID, params))
	if err == nil {
		return out, nil
	}

	d.logger.WarnContext(ctx, "collaborator call failed",
		"target", b.Target.String(), "domain", b.Domain, "action", b.Action, "error", err)

	fields := []syerr.Attr{syerr.FieldDomain(b.Domain), syerr.FieldAction(b.Action)}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, syerr.New(syerr.CodeToolTimeout, "collaborator call timed out", fields...)
	}
	return nil, syerr.New(syerr.CodeToolCollaboratorFailure, genericFailure, fields...)
}

func (d *Dispatcher) logStep(ctx context.Context, inv Invocation, res ToolResult, latency time.Duration) error {
	if inv.RunID == "" {
		return nil
	}
	summary := res.Error
	if res.Outcome == store.StepOutcomeExecuted {
		summary = truncate(d.redactor.Redact(renderOutput(res.Output)), maxSummaryLen)
	}
	err := d.ledger.LogStep(ctx, &store.Step{
		ID:            res.StepID,
		RunID:         inv.RunID,
		Domain:        res.Domain,
		Action:        res.Action,
		ToolName:      res.ToolName,
		RiskTier:      string(res.Tier),
		Params:        res.Params,
		ResultSummary: summary,
		Outcome:       res.Outcome,
		LatencyMs:     latency.Milliseconds(),
		GateID:        res.GateID,
	})
	if err != nil {
		return syerr.Wrap(err, syerr.CodeAgentLoopFailure, "recording step",
			syerr.FieldRunID(inv.RunID), syerr.FieldAction(res.Action))
	}
	return nil
}

func describe(b registry.Binding, params map[string]any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte("{}")
	}
	desc := b.Description
	if desc == "" {
		desc = b.Domain + "." + b.Action
	}
	return truncate(fmt.Sprintf("%s: %s %s", desc, b.Action, raw), maxSummaryLen)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}
