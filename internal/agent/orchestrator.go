// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package agent runs agent turns: it drives the reasoning provider, routes
// every tool call through policy and the approval gates, and records the
// run in the ledger.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/switchyard-dev/switchyard/internal/gate"
	"github.com/switchyard-dev/switchyard/internal/ledger"
	"github.com/switchyard-dev/switchyard/internal/metrics"
	"github.com/switchyard-dev/switchyard/internal/policy"
	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// DefaultMaxRounds is the number of provider rounds one run may use.
const DefaultMaxRounds = 5

const (
	exhaustedNotice    = "I could not finish this request within the allowed number of steps."
	systemPromptFormat = "You are Switchyard, an assistant for a trucking platform, speaking with a %s. " +
		"Use the available tools to answer. Actions that change data may need human approval; " +
		"if an action is rejected, explain that to the user and do not retry it."
)

// ResultType discriminates TurnResult.
type ResultType string

const (
	ResultResponse         ResultType = "response"
	ResultApprovalRequired ResultType = "approval_required"
	ResultRateLimited      ResultType = "rate_limited"
	ResultToolResult       ResultType = "tool_result"
	ResultRejected         ResultType = "rejected"
)

// DirectToolCall skips the first provider round with a known tool call.
type DirectToolCall struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// Hints adjust how a turn is handled.
type Hints struct {
	DirectToolCall *DirectToolCall `json:"direct_tool_call,omitempty"`
	// Model is an explicit provider/model reference.
	Model string `json:"model,omitempty"`
}

// TurnRequest is one user message for the orchestrator.
type TurnRequest struct {
	Role    string `json:"role"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Hints   Hints  `json:"hints"`
}

// ExecuteRequest runs one tool outside a turn.
type ExecuteRequest struct {
	Role   string         `json:"role"`
	UserID string         `json:"user_id"`
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input,omitempty"`
}

// TurnResult is what a turn, a resume or a direct execution returns.
type TurnResult struct {
	Type           ResultType        `json:"type"`
	ConversationID string            `json:"conversation_id"`
	RunID          string            `json:"run_id"`
	Role           registry.Role     `json:"role"`
	Response       string            `json:"response,omitempty"`
	GateID         string            `json:"gate_id,omitempty"`
	ToolName       string            `json:"tool_name,omitempty"`
	RiskLevel      registry.RiskTier `json:"risk_level,omitempty"`
	Tool           *ToolResult       `json:"tool,omitempty"`
	Rounds         int               `json:"rounds"`
}

// Config holds dependencies for the Orchestrator.
type Config struct {
	Registry      *registry.Registry
	Providers     *provider.Registry
	Dispatcher    *Dispatcher
	Conversations *ConversationManager
	Ledger        *ledger.Service
	Gates         *gate.Machine
	Metrics       *metrics.Metrics
	MaxRounds     int
	Logger        *slog.Logger
}

// Orchestrator handles agent turns and their approval resumes.
type Orchestrator struct {
	registry      *registry.Registry
	providers     *provider.Registry
	dispatcher    *Dispatcher
	conversations *ConversationManager
	ledger        *ledger.Service
	gates         *gate.Machine
	metrics       *metrics.Metrics
	maxRounds     int
	logger        *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	var missing []string
	if cfg.Registry == nil {
		missing = append(missing, "Registry")
	}
	if cfg.Providers == nil {
		missing = append(missing, "Providers")
	}
	if cfg.Dispatcher == nil {
		missing = append(missing, "Dispatcher")
	}
	if cfg.Conversations == nil {
		missing = append(missing, "Conversations")
	}
	if cfg.Ledger == nil {
		missing = append(missing, "Ledger")
	}
	if cfg.Gates == nil {
		missing = append(missing, "Gates")
	}
	if len(missing) > 0 {
		return nil, syerr.Errorf(syerr.CodeAgentLoopInvalidInput, "orchestrator: missing %v", missing)
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry:      cfg.Registry,
		providers:     cfg.Providers,
		dispatcher:    cfg.Dispatcher,
		conversations: cfg.Conversations,
		ledger:        cfg.Ledger,
		gates:         cfg.Gates,
		metrics:       cfg.Metrics,
		maxRounds:     maxRounds,
		logger:        logger,
	}, nil
}

// turnState is the in-flight state of one run between provider rounds.
type turnState struct {
	runID          string
	conversationID string
	role           registry.Role
	userID         string
	model          string
	transcript     []provider.Message

	// rounds counts every provider round of the run, across pauses.
	rounds int
	// limit caps rounds for this leg of the run; zero means maxRounds. A
	// resumed run always gets one more round so the provider sees the
	// outcome of the gated call.
	limit int
	// pending holds rounds and tokens not yet written to the run.
	pending ledger.Completion

	providerName  string
	resolvedModel string
}

func (st *turnState) invocation(auth policy.Authorization) Invocation {
	return Invocation{UserID: st.userID, Role: st.role, RunID: st.runID, Auth: auth}
}

// flush returns the pending figures with outcome and clears them.
func (st *turnState) flush(outcome string) ledger.Completion {
	c := st.pending
	c.Outcome = outcome
	st.pending = ledger.Completion{}
	return c
}

func (st *turnState) result(t ResultType) *TurnResult {
	return &TurnResult{
		Type:           t,
		ConversationID: st.conversationID,
		RunID:          st.runID,
		Role:           st.role,
		Rounds:         st.rounds,
	}
}

func validateTurn(req TurnRequest) error {
	var missing []string
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, "UserID")
	}
	if strings.TrimSpace(req.Message) == "" && req.Hints.DirectToolCall == nil {
		missing = append(missing, "Message")
	}
	if req.Hints.DirectToolCall != nil && req.Hints.DirectToolCall.Name == "" {
		missing = append(missing, "Hints.DirectToolCall.Name")
	}
	if len(missing) > 0 {
		return syerr.New(syerr.CodeAgentLoopInvalidInput,
			"missing required fields: "+strings.Join(missing, ", "),
			syerr.FieldUserID(req.UserID))
	}
	return nil
}

// HandleTurn processes one user message. It returns a final response, or
// an approval_required result when a high-risk call paused the run.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	role, err := registry.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if err := validateTurn(req); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("role", string(role)),
		attribute.Bool("direct_call", req.Hints.DirectToolCall != nil),
	))
	defer span.End()

	conv, err := o.conversations.Ensure(ctx, role, req.UserID)
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeAgentLoopFailure, "ensuring conversation", syerr.FieldRole(string(role)))
	}

	direct := req.Hints.DirectToolCall
	run, err := o.ledger.StartRun(ctx, ledger.StartRequest{
		ConversationID: conv.ID,
		Role:           string(role),
		UserID:         req.UserID,
		RequestText:    req.Message,
		Planning:       map[string]any{"direct_call": direct != nil},
	})
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeAgentLoopFailure, "starting run")
	}
	span.SetAttributes(attribute.String("run.id", run.ID))

	st := &turnState{
		runID:          run.ID,
		conversationID: conv.ID,
		role:           role,
		userID:         req.UserID,
		model:          req.Hints.Model,
	}

	text := req.Message
	if strings.TrimSpace(text) == "" {
		text = "(direct call: " + direct.Name + ")"
	}
	if err := o.conversations.Append(ctx, conv.ID, &store.Message{Role: store.MessageRoleUser, Content: text}); err != nil {
		return nil, o.fail(ctx, st, "persist failure", err)
	}
	if st.transcript, err = o.conversations.History(ctx, conv.ID); err != nil {
		return nil, o.fail(ctx, st, "history failure", err)
	}

	if direct != nil {
		args, err := json.Marshal(direct.Input)
		if err != nil {
			return nil, o.fail(ctx, st, "invalid direct call", syerr.Wrap(err, syerr.CodeToolInputInvalid, "encoding direct call input"))
		}
		calls := []provider.ToolCall{{ID: "direct-" + uuid.NewString(), Name: direct.Name, Arguments: string(args)}}
		if err := o.record(ctx, st, assistantMessage("", calls)); err != nil {
			return nil, o.fail(ctx, st, "persist failure", err)
		}
		if out, err := o.processCalls(ctx, st, calls); out != nil || err != nil {
			return out, err
		}
	}
	return o.drive(ctx, st)
}

// drive runs provider rounds until a terminal answer, a new gate, an error
// or the round limit.
func (o *Orchestrator) drive(ctx context.Context, st *turnState) (*TurnResult, error) {
	var last string
	limit := st.limit
	if limit <= 0 {
		limit = o.maxRounds
	}
	for st.rounds < limit {
		text, calls, err := o.callProvider(ctx, st)
		if err != nil {
			return nil, o.fail(ctx, st, "provider failure", err)
		}
		if text != "" {
			last = text
		}
		if err := o.record(ctx, st, assistantMessage(text, calls)); err != nil {
			return nil, o.fail(ctx, st, "persist failure", err)
		}
		if len(calls) == 0 {
			return o.complete(ctx, st, text)
		}
		if out, err := o.processCalls(ctx, st, calls); out != nil || err != nil {
			return out, err
		}
	}

	o.logger.WarnContext(ctx, "run reached round limit", "run_id", st.runID, "rounds", st.rounds)
	if last == "" {
		last = exhaustedNotice
	}
	return o.complete(ctx, st, last)
}

// processCalls dispatches one round's calls in order. The first call that
// needs approval pauses the run; the calls after it are deferred into the
// continuation.
func (o *Orchestrator) processCalls(ctx context.Context, st *turnState, calls []provider.ToolCall) (*TurnResult, error) {
	for i, tc := range calls {
		input, err := parseArgs(tc.Arguments)
		if err != nil {
			if err := o.record(ctx, st, toolMessage(tc, "error: tool input must be a JSON object")); err != nil {
				return nil, o.fail(ctx, st, "persist failure", err)
			}
			continue
		}
		res, err := o.dispatcher.Execute(ctx, Call{ID: tc.ID, Name: tc.Name, Input: input}, st.invocation(policy.Unauthorized()))
		if out, stop, err := o.handleResult(ctx, st, tc, res, err, calls[i+1:]); stop {
			return out, err
		}
	}
	return nil, nil
}

// handleResult folds one dispatch outcome into the run. stop reports that
// the run paused or ended.
func (o *Orchestrator) handleResult(
	ctx context.Context,
	st *turnState,
	tc provider.ToolCall,
	res ToolResult,
	dispatchErr error,
	deferred []provider.ToolCall,
) (out *TurnResult, stop bool, err error) {
	switch {
	case syerr.HasCode(dispatchErr, syerr.CodeRegistryActionNotFound):
		// The model asked for something this role cannot use; let it recover.
		content := fmt.Sprintf("error: Unknown action '%s'", tc.Name)
		if err := o.record(ctx, st, toolMessage(tc, content)); err != nil {
			return nil, true, o.fail(ctx, st, "persist failure", err)
		}
		return nil, false, nil

	case dispatchErr != nil:
		return nil, true, o.fail(ctx, st, "dispatch failure", dispatchErr)

	case res.Outcome == store.StepOutcomeApprovalRequired:
		out, err := o.suspend(ctx, st, tc, res, deferred)
		return out, true, err

	case res.Outcome == store.StepOutcomeError:
		// Keep the transcript paired before failing the run.
		if err := o.record(ctx, st, toolMessage(tc, res.Content())); err != nil {
			o.logger.WarnContext(ctx, "failed to persist tool error", "run_id", st.runID, "error", err)
		}
		return nil, true, o.fail(ctx, st, genericFailure, res.Err)

	default:
		if err := o.record(ctx, st, toolMessage(tc, res.Content())); err != nil {
			return nil, true, o.fail(ctx, st, "persist failure", err)
		}
		return nil, false, nil
	}
}

// suspend saves the continuation for res.GateID and pauses the run.
func (o *Orchestrator) suspend(ctx context.Context, st *turnState, tc provider.ToolCall, res ToolResult, deferred []provider.ToolCall) (*TurnResult, error) {
	cont := &Continuation{
		RunID:          st.runID,
		ConversationID: st.conversationID,
		Role:           st.role,
		UserID:         st.userID,
		Model:          st.model,
		Transcript:     st.transcript,
		Pending: PendingCall{
			CallID:   tc.ID,
			ToolName: res.ToolName,
			Domain:   res.Domain,
			Action:   res.Action,
			Params:   res.Params,
		},
		Deferred: deferred,
		Rounds:   st.rounds,
	}
	raw, err := cont.encode()
	if err != nil {
		return nil, o.fail(ctx, st, "continuation failure", err)
	}
	if err := o.ledger.SaveContinuation(ctx, res.GateID, raw); err != nil {
		return nil, o.fail(ctx, st, "continuation failure", err)
	}
	if err := o.pause(ctx, st, res.GateID); err != nil {
		return nil, err
	}

	out := st.result(ResultApprovalRequired)
	out.GateID = res.GateID
	out.ToolName = res.ToolName
	out.RiskLevel = res.Tier
	return out, nil
}

func (o *Orchestrator) pause(ctx context.Context, st *turnState, gateID string) error {
	if err := o.ledger.AddUsage(ctx, st.runID, st.flush("")); err != nil {
		return o.fail(ctx, st, "ledger failure", err)
	}
	if _, err := o.ledger.Suspend(ctx, st.runID, gateID); err != nil {
		return o.fail(ctx, st, "ledger failure", err)
	}
	o.afterTurn(ctx, st, string(ResultApprovalRequired))
	return nil
}

// Resume resolves gateID with decision and re-enters the paused run. On
// approval the pending call executes under the approved gate; on rejection
// a rejection notice replaces its result. Either way the loop continues
// from the point it paused.
func (o *Orchestrator) Resume(ctx context.Context, gateID string, decision store.GateDecision, decidedBy string) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "agent.resume", trace.WithAttributes(
		attribute.String("gate.id", gateID),
		attribute.String("gate.decision", string(decision)),
	))
	defer span.End()

	g, err := o.gates.Resolve(ctx, gateID, decision, decidedBy)
	if err != nil {
		return nil, err
	}

	raw, err := o.ledger.LoadContinuation(ctx, g.ID)
	if syerr.HasCode(err, syerr.CodeAgentContinuationNotFound) {
		return o.resumeDirect(ctx, g)
	}
	if err != nil {
		return nil, err
	}
	cont, err := decodeContinuation(g.ID, raw)
	if err != nil {
		if _, failErr := o.ledger.FailRun(ctx, g.RunID, ledger.Completion{Outcome: "continuation invalid"}); failErr != nil {
			o.logger.WarnContext(ctx, "failed to mark run failed", "run_id", g.RunID, "error", failErr)
		}
		return nil, err
	}

	if _, err := o.ledger.Resume(ctx, cont.RunID); err != nil {
		return nil, err
	}
	st := &turnState{
		runID:          cont.RunID,
		conversationID: cont.ConversationID,
		role:           cont.Role,
		userID:         cont.UserID,
		model:          cont.Model,
		transcript:     cont.Transcript,
		rounds:         cont.Rounds,
		limit:          max(o.maxRounds, cont.Rounds+1),
	}

	tc := provider.ToolCall{ID: cont.Pending.CallID, Name: cont.Pending.ToolName}
	if g.Decision == store.GateDecisionApproved {
		auth, err := policy.Authorized(g)
		if err != nil {
			return nil, o.fail(ctx, st, "authorization failure", err)
		}
		p := cont.Pending
		res, err := o.dispatcher.ExecuteAction(ctx, p.ToolName, p.Domain, p.Action, p.Params, st.invocation(auth))
		if out, stop, err := o.handleResult(ctx, st, tc, res, err, nil); stop {
			return out, err
		}
	} else {
		if err := o.record(ctx, st, toolMessage(tc, rejectionNotice(cont.Pending.ToolName))); err != nil {
			return nil, o.fail(ctx, st, "persist failure", err)
		}
	}

	if out, err := o.processCalls(ctx, st, cont.Deferred); out != nil || err != nil {
		return out, err
	}
	return o.drive(ctx, st)
}

func rejectionNotice(toolName string) string {
	return fmt.Sprintf("rejected: a human approver declined %s. It was not executed; do not retry it.", toolName)
}

// resumeDirect finishes a gate raised by ExecuteTool, which has no
// transcript to continue: the stored invocation runs once on approval.
func (o *Orchestrator) resumeDirect(ctx context.Context, g *store.Gate) (*TurnResult, error) {
	run, err := o.ledger.Resume(ctx, g.RunID)
	if err != nil {
		return nil, err
	}
	st := &turnState{
		runID:          run.ID,
		conversationID: run.ConversationID,
		role:           registry.Role(g.Role),
		userID:         g.UserID,
	}

	if g.Decision != store.GateDecisionApproved {
		if _, err := o.ledger.CompleteRun(ctx, st.runID, st.flush("rejected")); err != nil {
			return nil, syerr.Wrap(err, syerr.CodeAgentLoopFailure, "completing run", syerr.FieldRunID(st.runID))
		}
		o.afterTurn(ctx, st, string(ResultRejected))
		out := st.result(ResultRejected)
		out.GateID = g.ID
		out.ToolName = g.ToolName
		out.RiskLevel = registry.RiskTier(g.RiskTier)
		return out, nil
	}

	auth, err := policy.Authorized(g)
	if err != nil {
		return nil, o.fail(ctx, st, "authorization failure", err)
	}
	res, err := o.dispatcher.ExecuteAction(ctx, g.ToolName, g.Scope.Domain, g.Scope.Action, g.Params, st.invocation(auth))
	return o.finishDirect(ctx, st, res, err)
}

// ExecuteTool runs one tool call outside a conversation turn, in a run of
// its own. An unknown tool fails before any run is created.
func (o *Orchestrator) ExecuteTool(ctx context.Context, req ExecuteRequest) (*TurnResult, error) {
	role, err := registry.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) == "" || req.Tool == "" {
		return nil, syerr.New(syerr.CodeAgentLoopInvalidInput, "missing required fields: UserID, Tool")
	}
	b, _, err := o.registry.ResolveTool(req.Tool, req.Input)
	if err != nil {
		return nil, err
	}
	if !o.registry.VisibleTo(role, b.Domain) {
		return nil, unknownAction(req.Tool)
	}

	conv, err := o.conversations.Ensure(ctx, role, req.UserID)
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeAgentLoopFailure, "ensuring conversation")
	}
	run, err := o.ledger.StartRun(ctx, ledger.StartRequest{
		ConversationID: conv.ID,
		Role:           string(role),
		UserID:         req.UserID,
		RequestText:    "execute " + req.Tool,
		Planning:       map[string]any{"direct_execute": true},
	})
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeAgentLoopFailure, "starting run")
	}

	st := &turnState{runID: run.ID, conversationID: conv.ID, role: role, userID: req.UserID}
	res, err := o.dispatcher.Execute(ctx, Call{Name: req.Tool, Input: req.Input}, st.invocation(policy.Unauthorized()))
	return o.finishDirect(ctx, st, res, err)
}

func (o *Orchestrator) finishDirect(ctx context.Context, st *turnState, res ToolResult, dispatchErr error) (*TurnResult, error) {
	if dispatchErr != nil {
		return nil, o.fail(ctx, st, "dispatch failure", dispatchErr)
	}

	switch res.Outcome {
	case store.StepOutcomeApprovalRequired:
		if err := o.pause(ctx, st, res.GateID); err != nil {
			return nil, err
		}
		out := st.result(ResultApprovalRequired)
		out.GateID = res.GateID
		out.ToolName = res.ToolName
		out.RiskLevel = res.Tier
		out.Tool = &res
		return out, nil

	case store.StepOutcomeError:
		return nil, o.fail(ctx, st, genericFailure, res.Err)

	case store.StepOutcomeRateLimited:
		if _, err := o.ledger.FailRun(ctx, st.runID, st.flush("rate limited")); err != nil {
			return nil, syerr.Wrap(err, syerr.CodeAgentLoopFailure, "failing run", syerr.FieldRunID(st.runID))
		}
		o.afterTurn(ctx, st, string(ResultRateLimited))
		out := st.result(ResultRateLimited)
		out.ToolName = res.ToolName
		out.Tool = &res
		return out, nil

	default:
		if _, err := o.ledger.CompleteRun(ctx, st.runID, st.flush(truncate(res.Content(), maxSummaryLen))); err != nil {
			return nil, syerr.Wrap(err, syerr.CodeAgentLoopFailure, "completing run", syerr.FieldRunID(st.runID))
		}
		o.afterTurn(ctx, st, "completed")
		out := st.result(ResultToolResult)
		out.GateID = res.GateID
		out.ToolName = res.ToolName
		out.RiskLevel = res.Tier
		out.Tool = &res
		return out, nil
	}
}

// AvailableTools returns the tool catalogue role may use.
func (o *Orchestrator) AvailableTools(role string) ([]registry.ToolSpec, error) {
	r, err := registry.ParseRole(role)
	if err != nil {
		return nil, err
	}
	return o.registry.Tools(r), nil
}

func (o *Orchestrator) complete(ctx context.Context, st *turnState, text string) (*TurnResult, error) {
	if _, err := o.ledger.CompleteRun(ctx, st.runID, st.flush(truncate(text, maxSummaryLen))); err != nil {
		return nil, syerr.Wrap(err, syerr.CodeAgentLoopFailure, "completing run", syerr.FieldRunID(st.runID))
	}
	o.afterTurn(ctx, st, "completed")
	out := st.result(ResultResponse)
	out.Response = text
	return out, nil
}

// fail marks the run failed and returns the error for the caller.
// Collaborator errors collapse to one generic failure.
func (o *Orchestrator) fail(ctx context.Context, st *turnState, outcome string, cause error) error {
	if _, err := o.ledger.FailRun(ctx, st.runID, st.flush(outcome)); err != nil {
		o.logger.WarnContext(ctx, "failed to mark run failed", "run_id", st.runID, "error", err)
	}
	o.afterTurn(ctx, st, "failed")
	o.logger.ErrorContext(ctx, "run failed", "run_id", st.runID, "outcome", outcome, "error", cause)

	if syerr.IsCollaboratorFailure(cause) {
		return syerr.New(syerr.CodeToolCollaboratorFailure, genericFailure, syerr.FieldRunID(st.runID))
	}
	return syerr.With(cause, syerr.FieldRunID(st.runID))
}

// afterTurn records planning metadata, the audit entry and metrics. None of
// it may fail the turn.
func (o *Orchestrator) afterTurn(ctx context.Context, st *turnState, result string) {
	if st.providerName != "" {
		err := o.ledger.UpdatePlanning(ctx, st.runID, map[string]any{
			"provider": st.providerName,
			"model":    st.resolvedModel,
		})
		if err != nil {
			o.logger.WarnContext(ctx, "failed to record run planning", "run_id", st.runID, "error", err)
		}
	}
	o.ledger.LogAction(ctx, ledger.Action{
		Action: "agent_turn",
		Actor:  st.userID,
		RunID:  st.runID,
		Details: map[string]any{
			"conversation_id": st.conversationID,
			"role":            string(st.role),
			"rounds":          st.rounds,
			"provider":        st.providerName,
		},
		Result: result,
	})
	o.metrics.RecordTurn(string(st.role), result, st.rounds)
	o.logger.InfoContext(ctx, "turn finished",
		"run_id", st.runID, "role", st.role, "result", result, "rounds", st.rounds)
}

// record appends msg to the transcript and the conversation. Empty
// assistant messages are skipped.
func (o *Orchestrator) record(ctx context.Context, st *turnState, msg provider.Message) error {
	if msg.Role != store.MessageRoleTool && msg.Content == "" && len(msg.ToolCalls) == 0 {
		return nil
	}
	st.transcript = append(st.transcript, msg)
	if err := o.conversations.AppendProvider(ctx, st.conversationID, msg); err != nil {
		return syerr.Wrap(err, syerr.CodeAgentLoopFailure, "persisting message", syerr.FieldRunID(st.runID))
	}
	return nil
}

func toolMessage(tc provider.ToolCall, content string) provider.Message {
	return provider.Message{
		Role:       store.MessageRoleTool,
		Content:    content,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
	}
}

func parseArgs(args string) (map[string]any, error) {
	if strings.TrimSpace(args) == "" {
		return map[string]any{}, nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return nil, syerr.Wrap(err, syerr.CodeToolInputInvalid, "tool input must be a JSON object")
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}
