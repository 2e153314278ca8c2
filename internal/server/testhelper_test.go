// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/agent"
	"github.com/switchyard-dev/switchyard/internal/gate"
	"github.com/switchyard-dev/switchyard/internal/ledger"
	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/server"
	"github.com/switchyard-dev/switchyard/internal/store"
	"github.com/switchyard-dev/switchyard/internal/store/memory"
)

type resumeCall struct {
	GateID    string
	Decision  store.GateDecision
	DecidedBy string
}

// fakeTurns records calls and answers with canned results. Turns for the
// user "slow" block until release is closed.
type fakeTurns struct {
	reg *registry.Registry

	mu        sync.Mutex
	turns     []agent.TurnRequest
	executes  []agent.ExecuteRequest
	resumes   []resumeCall
	result    *agent.TurnResult
	err       error
	entered   chan struct{}
	releaseCh chan struct{}
}

func newFakeTurns(t *testing.T) *fakeTurns {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return &fakeTurns{
		reg:       reg,
		result:    &agent.TurnResult{Type: agent.ResultResponse, Response: "Found 3 carriers.", Rounds: 2},
		entered:   make(chan struct{}, 1),
		releaseCh: make(chan struct{}),
	}
}

func (f *fakeTurns) answer(res *agent.TurnResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result, f.err = res, err
}

func (f *fakeTurns) outcome() (*agent.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeTurns) HandleTurn(_ context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
	f.mu.Lock()
	f.turns = append(f.turns, req)
	f.mu.Unlock()
	if req.UserID == "slow" {
		f.entered <- struct{}{}
		<-f.releaseCh
	}
	return f.outcome()
}

func (f *fakeTurns) Resume(_ context.Context, gateID string, decision store.GateDecision, decidedBy string) (*agent.TurnResult, error) {
	f.mu.Lock()
	f.resumes = append(f.resumes, resumeCall{GateID: gateID, Decision: decision, DecidedBy: decidedBy})
	f.mu.Unlock()
	return f.outcome()
}

func (f *fakeTurns) ExecuteTool(_ context.Context, req agent.ExecuteRequest) (*agent.TurnResult, error) {
	f.mu.Lock()
	f.executes = append(f.executes, req)
	f.mu.Unlock()
	return f.outcome()
}

func (f *fakeTurns) AvailableTools(role string) ([]registry.ToolSpec, error) {
	r, err := registry.ParseRole(role)
	if err != nil {
		return nil, err
	}
	return f.reg.Tools(r), nil
}

type fakeProviders struct{}

func (fakeProviders) Statuses(context.Context) []provider.ProviderStatus {
	return []provider.ProviderStatus{{Available: true, Provider: "anthropic", Message: "ok"}}
}

type env struct {
	srv    *server.Server
	turns  *fakeTurns
	store  *memory.Store
	ledger *ledger.Service
	gates  *gate.Machine
}

func newEnv(t *testing.T, providers ...server.ProviderService) *env {
	t.Helper()
	st := memory.New()
	led := ledger.New(st.Ledger(), ledger.WithAudit(st.Audit()))
	gates := gate.NewMachine(st.Ledger(), gate.WithAudit(st.Audit()))
	turns := newFakeTurns(t)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	svc, err := server.NewServices(turns, gates, led, st.Audit(), providers...)
	require.NoError(t, err)
	srv.RegisterServices(svc)

	return &env{srv: srv, turns: turns, store: st, ledger: led, gates: gates}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

// problem is the subset of huma's error model the tests inspect.
type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Errors []struct {
		Location string `json:"location"`
		Value    any    `json:"value"`
	} `json:"errors"`
}

func (p problem) code() string {
	for _, e := range p.Errors {
		if e.Location == "code" {
			s, _ := e.Value.(string)
			return s
		}
	}
	return ""
}

func (e *env) startRun(t *testing.T, userID string) *store.Run {
	t.Helper()
	run, err := e.ledger.StartRun(context.Background(), ledger.StartRequest{
		ConversationID: "conv-" + userID,
		Role:           "recruiter",
		UserID:         userID,
		RequestText:    "message the driver",
	})
	require.NoError(t, err)
	return run
}

func (e *env) createGate(t *testing.T, run *store.Run) *store.Gate {
	t.Helper()
	g, err := e.gates.Create(context.Background(), gate.CreateRequest{
		RunID:  run.ID,
		UserID: run.UserID,
		Role:   registry.RoleRecruiter,
		Scope: store.GateScope{
			RunID:        run.ID,
			Domain:       "recruiter_tools",
			Action:       "send_message",
			ParamsDigest: "digest",
		},
		ToolName:    "send_message",
		Description: "send an SMS to drv-9",
		RiskTier:    registry.TierExecuteHigh,
		Params:      map[string]any{"driverId": "drv-9"},
	})
	require.NoError(t, err)
	return g
}

