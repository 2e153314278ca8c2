// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/switchyard-dev/switchyard/internal/agent"
	"github.com/switchyard-dev/switchyard/internal/gate"
	"github.com/switchyard-dev/switchyard/internal/ledger"
	"github.com/switchyard-dev/switchyard/internal/policy"
	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	"github.com/switchyard-dev/switchyard/internal/store/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// reply is one scripted provider round.
type reply struct {
	text  string
	calls []provider.ToolCall
	// fail makes the round's stream end with an error event.
	fail string
}

func call(id, name string, input map[string]any) provider.ToolCall {
	raw, _ := json.Marshal(input)
	return provider.ToolCall{ID: id, Name: name, Arguments: string(raw)}
}

// scriptedProvider answers each Chat with the next scripted reply and
// records every request. Once the script runs out it answers "done".
type scriptedProvider struct {
	name string

	mu       sync.Mutex
	script   []reply
	requests []provider.ChatRequest
}

func newScriptedProvider(name string, script ...reply) *scriptedProvider {
	return &scriptedProvider{name: name, script: script}
}

func (p *scriptedProvider) Name() string                   { return p.name }
func (p *scriptedProvider) Available(context.Context) bool { return true }
func (p *scriptedProvider) Close() error                   { return nil }

func (p *scriptedProvider) ListModels(context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}

func (p *scriptedProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: true, Provider: p.name, Message: "ok"}, nil
}

func (p *scriptedProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	p.mu.Lock()
	req.Messages = append([]provider.Message(nil), req.Messages...)
	p.requests = append(p.requests, req)
	r := reply{text: "done"}
	if len(p.script) > 0 {
		r = p.script[0]
		p.script = p.script[1:]
	}
	p.mu.Unlock()

	ch := make(chan provider.ChatEvent, len(r.calls)+4)
	if r.text != "" {
		ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: r.text}
	}
	for _, tc := range r.calls {
		ch <- provider.ChatEvent{Type: provider.EventTypeToolCall, ToolCall: &tc}
	}
	if r.fail != "" {
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: r.fail}
	} else {
		ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 4}}
		ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) push(rs ...reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, rs...)
}

func (p *scriptedProvider) Requests() []provider.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.ChatRequest(nil), p.requests...)
}

// lastToolMessage returns the last tool message of request i.
func (p *scriptedProvider) lastToolMessage(t *testing.T, i int) provider.Message {
	t.Helper()
	reqs := p.Requests()
	require.Greater(t, len(reqs), i, "provider was not called %d times", i+1)
	msgs := reqs[i].Messages
	for j := len(msgs) - 1; j >= 0; j-- {
		if msgs[j].Role == store.MessageRoleTool {
			return msgs[j]
		}
	}
	t.Fatalf("request %d has no tool message", i)
	return provider.Message{}
}

var (
	findMatchesTarget = registry.Target{Service: "carrierMatching", Function: "findMatchingCarriers"}
	sendMessageTarget = registry.Target{Service: "messaging", Function: "sendMessage"}
	explainTarget     = registry.Target{Service: "matchExplanationService", Function: "getMatchExplanationForDriver"}
	hazardTarget      = registry.Target{Service: "roadUtilitiesService", Function: "reportRoadHazard"}
)

// collaborators counts calls into the bound backend functions.
type collaborators struct {
	finds atomic.Int64
	sends atomic.Int64

	mu       sync.Mutex
	sendArgs [][]any
}

func (c *collaborators) table() *registry.FuncTable {
	ft := registry.NewFuncTable()
	ft.Register(findMatchesTarget, func(_ context.Context, args []any) (any, error) {
		c.finds.Add(1)
		return map[string]any{"count": 3, "carriers": []string{"ACME", "Bluebird", "Cobalt"}}, nil
	})
	ft.Register(sendMessageTarget, func(_ context.Context, args []any) (any, error) {
		c.sends.Add(1)
		c.mu.Lock()
		c.sendArgs = append(c.sendArgs, args)
		c.mu.Unlock()
		return map[string]any{"delivered": true}, nil
	})
	ft.Register(explainTarget, func(context.Context, []any) (any, error) {
		return nil, errors.New("pq: relation \"match_explanations\" does not exist")
	})
	ft.Register(hazardTarget, func(ctx context.Context, _ []any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	return ft
}

func (c *collaborators) SendArgs() [][]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]any(nil), c.sendArgs...)
}

// harness wires an Orchestrator over the built-in catalogue, an in-memory
// store and scripted providers.
type harness struct {
	store  *memory.Store
	orch   *agent.Orchestrator
	disp   *agent.Dispatcher
	ledger *ledger.Service
	gates  *gate.Machine
	convs  *agent.ConversationManager
	collab *collaborators
	prov   *scriptedProvider
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	maxRounds   int
	toolTimeout time.Duration
	extra       []*scriptedProvider
	defaultRef  string
	failover    []string
}

func withMaxRounds(n int) harnessOption {
	return func(c *harnessConfig) { c.maxRounds = n }
}

func withToolTimeout(d time.Duration) harnessOption {
	return func(c *harnessConfig) { c.toolTimeout = d }
}

// withProviders registers extra providers and routes default to ref with
// the given failover chain.
func withProviders(ref string, failover []string, extra ...*scriptedProvider) harnessOption {
	return func(c *harnessConfig) {
		c.defaultRef = ref
		c.failover = failover
		c.extra = extra
	}
}

func newHarness(t *testing.T, script []reply, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{defaultRef: "scripted/test-model"}
	for _, opt := range opts {
		opt(&cfg)
	}

	reg, err := registry.Default()
	require.NoError(t, err)

	st := memory.New()
	lim := policy.NewMemoryLimiter()
	t.Cleanup(func() { _ = lim.Close() })

	led := ledger.New(st.Ledger(), ledger.WithAudit(st.Audit()))
	gates := gate.NewMachine(st.Ledger(), gate.WithAudit(st.Audit()))
	enf := policy.NewEnforcer(reg, lim, policy.WithAudit(st.Audit()))
	collab := &collaborators{}

	disp, err := agent.NewDispatcher(agent.DispatcherConfig{
		Registry: reg,
		Enforcer: enf,
		Invoker:  collab.table(),
		Gates:    gates,
		Ledger:   led,
		Timeout:  cfg.toolTimeout,
	})
	require.NoError(t, err)

	prov := newScriptedProvider("scripted", script...)
	providers := provider.NewRegistry()
	providers.Register(prov.Name(), prov)
	for _, p := range cfg.extra {
		providers.Register(p.Name(), p)
	}
	require.NoError(t, providers.SetDefault(cfg.defaultRef))
	if len(cfg.failover) > 0 {
		require.NoError(t, providers.SetFailover(cfg.failover))
	}

	convs := agent.NewConversationManager(st.Conversations(), 0)
	orch, err := agent.New(agent.Config{
		Registry:      reg,
		Providers:     providers,
		Dispatcher:    disp,
		Conversations: convs,
		Ledger:        led,
		Gates:         gates,
		MaxRounds:     cfg.maxRounds,
	})
	require.NoError(t, err)

	return &harness{
		store:  st,
		orch:   orch,
		disp:   disp,
		ledger: led,
		gates:  gates,
		convs:  convs,
		collab: collab,
		prov:   prov,
	}
}

func (h *harness) steps(t *testing.T, runID string) []*store.Step {
	t.Helper()
	steps, err := h.ledger.Steps(context.Background(), runID)
	require.NoError(t, err)
	return steps
}

func (h *harness) run(t *testing.T, runID string) *store.Run {
	t.Helper()
	run, err := h.ledger.GetRun(context.Background(), runID)
	require.NoError(t, err)
	return run
}

func (h *harness) gate(t *testing.T, gateID string) *store.Gate {
	t.Helper()
	g, err := h.gates.Get(context.Background(), gateID)
	require.NoError(t, err)
	return g
}
