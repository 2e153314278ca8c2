// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/switchyard-dev/switchyard/internal/agent"
	"github.com/switchyard-dev/switchyard/internal/gate"
	"github.com/switchyard-dev/switchyard/internal/ledger"
	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// defaultDecidedBy records resolutions that name no approver.
const defaultDecidedBy = "api"

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "handle-turn",
		Method:      http.MethodPost,
		Path:        "/api/v1/turns",
		Summary:     "Run one agent turn",
		Description: "Runs the provider loop for one user message. The result is a response, " +
			"or approval_required when a high-risk action paused the run.",
		Tags: []string{"turns"},
	}, s.handleTurn)

	huma.Register(s.api, huma.Operation{
		OperationID: "resolve-gate",
		Method:      http.MethodPost,
		Path:        "/api/v1/gates/{id}/resolve",
		Summary:     "Approve or reject a gate and resume its run",
		Tags:        []string{"gates"},
	}, s.handleResolveGate)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-gates",
		Method:      http.MethodGet,
		Path:        "/api/v1/gates",
		Summary:     "List approval gates",
		Tags:        []string{"gates"},
	}, s.handleListGates)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-gate",
		Method:      http.MethodGet,
		Path:        "/api/v1/gates/{id}",
		Summary:     "Get an approval gate",
		Tags:        []string{"gates"},
	}, s.handleGetGate)

	huma.Register(s.api, huma.Operation{
		OperationID: "execute-tool",
		Method:      http.MethodPost,
		Path:        "/api/v1/tools/execute",
		Summary:     "Execute one tool without the provider loop",
		Tags:        []string{"tools"},
	}, s.handleExecuteTool)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-tools",
		Method:      http.MethodGet,
		Path:        "/api/v1/tools",
		Summary:     "List the tools a role may use",
		Tags:        []string{"tools"},
	}, s.handleListTools)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs",
		Summary:     "List recent runs",
		Tags:        []string{"runs"},
	}, s.handleListRuns)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-run-trace",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/{id}/trace",
		Summary:     "Get a run with its steps and gates",
		Tags:        []string{"runs"},
	}, s.handleRunTrace)

	huma.Register(s.api, huma.Operation{
		OperationID: "query-audit",
		Method:      http.MethodGet,
		Path:        "/api/v1/audit",
		Summary:     "Query the audit log",
		Tags:        []string{"audit"},
	}, s.handleAudit)

	if s.services.providers != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "list-providers",
			Method:      http.MethodGet,
			Path:        "/api/v1/providers",
			Summary:     "Reasoning provider status",
			Tags:        []string{"system"},
		}, s.handleProviders)
	}
}

// apiError maps a coded error to an HTTP error. Internal failures are
// logged and replaced with a generic message.
func (s *Server) apiError(ctx context.Context, err error, op string) error {
	status := syerr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "request failed", "op", op, "error", err)
		msg = "internal error"
	}
	var details []error
	if code := syerr.CodeOf(err); code != "" {
		details = append(details, &huma.ErrorDetail{Location: "code", Value: string(code), Message: string(code)})
	}
	return huma.NewError(status, msg, details...)
}

// --- Request/Response types for huma ---

type turnInput struct {
	Body struct {
		Role           string                `json:"role" doc:"Caller role (driver, recruiter, carrier, admin)"`
		UserID         string                `json:"user_id" doc:"Caller identifier"`
		Message        string                `json:"message,omitempty" doc:"User message"`
		Model          string                `json:"model,omitempty" doc:"Explicit provider/model reference"`
		DirectToolCall *agent.DirectToolCall `json:"direct_tool_call,omitempty" doc:"Skip the first provider round with this call"`
	}
}

type turnOutput struct {
	Body *agent.TurnResult
}

type resolveGateInput struct {
	ID   string `path:"id"`
	Body struct {
		Decision  string `json:"decision" doc:"approved or rejected"`
		DecidedBy string `json:"decided_by,omitempty" doc:"Approver identity"`
	}
}

type listGatesInput struct {
	Status string `query:"status" doc:"Filter by decision: pending, approved or rejected"`
	UserID string `query:"user_id"`
	RunID  string `query:"run_id"`
	Limit  int    `query:"limit" minimum:"0" maximum:"500"`
	Offset int    `query:"offset" minimum:"0"`
}

type listGatesOutput struct {
	Body struct {
		Gates []GateView `json:"gates"`
	}
}

type gateIDInput struct {
	ID string `path:"id"`
}

type getGateOutput struct {
	Body GateView
}

type executeToolInput struct {
	Body struct {
		Role   string         `json:"role" doc:"Caller role"`
		UserID string         `json:"user_id" doc:"Caller identifier"`
		Tool   string         `json:"tool" doc:"Tool name as offered to the provider"`
		Input  map[string]any `json:"input,omitempty" doc:"Tool input; routers take {action, params}"`
	}
}

type listToolsInput struct {
	Role string `query:"role" required:"true" doc:"Caller role"`
}

type listToolsOutput struct {
	Body struct {
		Role  string              `json:"role"`
		Tools []registry.ToolSpec `json:"tools"`
	}
}

type listRunsInput struct {
	UserID string `query:"user_id"`
	Status string `query:"status" doc:"running, awaiting_approval, completed or failed"`
	Limit  int    `query:"limit" minimum:"0" maximum:"500"`
	Offset int    `query:"offset" minimum:"0"`
}

type listRunsOutput struct {
	Body struct {
		Runs []RunSummaryView `json:"runs"`
	}
}

type runIDInput struct {
	ID string `path:"id"`
}

type traceOutput struct {
	Body TraceView
}

type auditInput struct {
	Action string `query:"action"`
	Actor  string `query:"actor"`
	RunID  string `query:"run_id"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000"`
	Offset int    `query:"offset" minimum:"0"`
}

type auditOutput struct {
	Body struct {
		Entries []AuditEntryView `json:"entries"`
	}
}

type providersOutput struct {
	Body struct {
		Providers []provider.ProviderStatus `json:"providers"`
	}
}

// --- Handlers ---

func (s *Server) handleTurn(ctx context.Context, input *turnInput) (*turnOutput, error) {
	b := input.Body
	release, err := s.slot(b.Role, b.UserID, "turns")
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.services.turns.HandleTurn(ctx, agent.TurnRequest{
		Role:    b.Role,
		UserID:  b.UserID,
		Message: b.Message,
		Hints:   agent.Hints{DirectToolCall: b.DirectToolCall, Model: b.Model},
	})
	if err != nil {
		return nil, s.apiError(ctx, err, "handle turn")
	}
	return &turnOutput{Body: res}, nil
}

func (s *Server) handleResolveGate(ctx context.Context, input *resolveGateInput) (*turnOutput, error) {
	decision, err := gate.ParseDecision(input.Body.Decision)
	if err != nil {
		return nil, s.apiError(ctx, err, "resolve gate")
	}
	g, err := s.services.gates.Get(ctx, input.ID)
	if err != nil {
		return nil, s.apiError(ctx, err, "resolve gate")
	}
	release, err := s.slot(g.Role, g.UserID, "resolve")
	if err != nil {
		return nil, err
	}
	defer release()

	decidedBy := input.Body.DecidedBy
	if decidedBy == "" {
		decidedBy = defaultDecidedBy
	}
	res, err := s.services.turns.Resume(ctx, input.ID, decision, decidedBy)
	if err != nil {
		return nil, s.apiError(ctx, err, "resolve gate")
	}
	return &turnOutput{Body: res}, nil
}

func (s *Server) handleListGates(ctx context.Context, input *listGatesInput) (*listGatesOutput, error) {
	filter := store.GateFilter{RunID: input.RunID, UserID: input.UserID, Limit: input.Limit, Offset: input.Offset}
	if input.Status != "" {
		filter.Decision = store.GateDecision(input.Status)
		if !filter.Decision.Valid() {
			return nil, s.apiError(ctx, syerr.Errorf(syerr.CodeServerRequestInvalid,
				"status must be pending, approved or rejected, got %q", input.Status), "list gates")
		}
	}
	gates, err := s.services.gates.List(ctx, filter)
	if err != nil {
		return nil, s.apiError(ctx, err, "list gates")
	}
	out := &listGatesOutput{}
	out.Body.Gates = make([]GateView, 0, len(gates))
	for _, g := range gates {
		out.Body.Gates = append(out.Body.Gates, gateView(g))
	}
	return out, nil
}

func (s *Server) handleGetGate(ctx context.Context, input *gateIDInput) (*getGateOutput, error) {
	g, err := s.services.gates.Get(ctx, input.ID)
	if err != nil {
		return nil, s.apiError(ctx, err, "get gate")
	}
	return &getGateOutput{Body: gateView(g)}, nil
}

func (s *Server) handleExecuteTool(ctx context.Context, input *executeToolInput) (*turnOutput, error) {
	b := input.Body
	res, err := s.services.turns.ExecuteTool(ctx, agent.ExecuteRequest{
		Role:   b.Role,
		UserID: b.UserID,
		Tool:   b.Tool,
		Input:  b.Input,
	})
	if err != nil {
		return nil, s.apiError(ctx, err, "execute tool")
	}
	return &turnOutput{Body: res}, nil
}

func (s *Server) handleListTools(ctx context.Context, input *listToolsInput) (*listToolsOutput, error) {
	tools, err := s.services.turns.AvailableTools(input.Role)
	if err != nil {
		return nil, s.apiError(ctx, err, "list tools")
	}
	out := &listToolsOutput{}
	out.Body.Role = input.Role
	out.Body.Tools = tools
	return out, nil
}

func (s *Server) handleListRuns(ctx context.Context, input *listRunsInput) (*listRunsOutput, error) {
	filter := store.RunFilter{UserID: input.UserID, Limit: input.Limit, Offset: input.Offset}
	if input.Status != "" {
		switch status := store.RunStatus(input.Status); status {
		case store.RunStatusRunning, store.RunStatusAwaitingApproval, store.RunStatusCompleted, store.RunStatusFailed:
			filter.Status = status
		default:
			return nil, s.apiError(ctx, syerr.Errorf(syerr.CodeServerRequestInvalid,
				"unknown run status %q", input.Status), "list runs")
		}
	}
	runs, err := s.services.runs.RecentRuns(ctx, filter)
	if err != nil {
		return nil, s.apiError(ctx, err, "list runs")
	}
	out := &listRunsOutput{}
	out.Body.Runs = make([]RunSummaryView, 0, len(runs))
	for _, rs := range runs {
		out.Body.Runs = append(out.Body.Runs, RunSummaryView{Run: runView(rs.Run), Summary: rs.Summary})
	}
	return out, nil
}

func (s *Server) handleRunTrace(ctx context.Context, input *runIDInput) (*traceOutput, error) {
	t, err := s.services.runs.Trace(ctx, input.ID)
	if err != nil {
		return nil, s.apiError(ctx, err, "run trace")
	}
	return &traceOutput{Body: traceView(t)}, nil
}

func (s *Server) handleAudit(ctx context.Context, input *auditInput) (*auditOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 100
	}
	entries, err := s.services.audit.Query(ctx, store.AuditFilter{
		Action: input.Action,
		Actor:  input.Actor,
		RunID:  input.RunID,
		Limit:  limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, s.apiError(ctx, err, "query audit")
	}
	out := &auditOutput{}
	out.Body.Entries = make([]AuditEntryView, 0, len(entries))
	for _, e := range entries {
		out.Body.Entries = append(out.Body.Entries, auditView(e))
	}
	return out, nil
}

func (s *Server) handleProviders(ctx context.Context, _ *struct{}) (*providersOutput, error) {
	out := &providersOutput{}
	out.Body.Providers = s.services.providers.Statuses(ctx)
	return out, nil
}

var _ RunService = (*ledger.Service)(nil)
var _ GateService = (*gate.Machine)(nil)
