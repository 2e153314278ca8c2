// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package storetest holds the behavioural suite every store backend must
// pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) store.Store

// Run exercises a backend against the store contracts.
func Run(t *testing.T, open Opener) {
	t.Run("Conversations", func(t *testing.T) { testConversations(t, open(t)) })
	t.Run("ActiveWindow", func(t *testing.T) { testActiveWindow(t, open(t)) })
	t.Run("Runs", func(t *testing.T) { testRuns(t, open(t)) })
	t.Run("Steps", func(t *testing.T) { testSteps(t, open(t)) })
	t.Run("GateResolveOnce", func(t *testing.T) { testGateResolveOnce(t, open(t)) })
	t.Run("GateResolveRace", func(t *testing.T) { testGateResolveRace(t, open(t)) })
	t.Run("ListGates", func(t *testing.T) { testListGates(t, open(t)) })
	t.Run("Continuations", func(t *testing.T) { testContinuations(t, open(t)) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, open(t)) })
	t.Run("Counters", func(t *testing.T) { testCounters(t, open(t)) })
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// SeedRun creates a conversation and a running run, returning the run.
func SeedRun(t *testing.T, s store.Store, runID string) *store.Run {
	t.Helper()
	return seedRunAt(t, s, runID, base)
}

func seedRunAt(t *testing.T, s store.Store, runID string, at time.Time) *store.Run {
	t.Helper()
	ctx := context.Background()

	convID := "conv-" + runID
	require.NoError(t, s.Conversations().CreateConversation(ctx, &store.Conversation{
		ID: convID, Role: "driver", UserID: "user-" + runID, CreatedAt: at, UpdatedAt: at,
	}))
	run := &store.Run{
		ID:             runID,
		ConversationID: convID,
		Role:           "driver",
		UserID:         "user-" + runID,
		RequestText:    "find loads",
		Status:         store.RunStatusRunning,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	require.NoError(t, s.Ledger().CreateRun(ctx, run))
	return run
}

func pendingGate(id, runID string) *store.Gate {
	return &store.Gate{
		ID:     id,
		RunID:  runID,
		UserID: "user-" + runID,
		Role:   "recruiter",
		Scope: store.GateScope{
			RunID: runID, Domain: "send_message", Action: "send_message", ParamsDigest: "abc",
		},
		ToolName:    "send_message",
		Description: "send a message",
		RiskTier:    "execute_high",
		Params:      map[string]any{"to": "driver-1"},
		Decision:    store.GateDecisionPending,
		CreatedAt:   base,
	}
}

func testConversations(t *testing.T, s store.Store) {
	ctx := context.Background()
	cs := s.Conversations()

	conv := &store.Conversation{ID: "c1", Role: "driver", UserID: "u1", CreatedAt: base, UpdatedAt: base}
	require.NoError(t, cs.CreateConversation(ctx, conv))

	got, err := cs.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "driver", got.Role)
	assert.Equal(t, "u1", got.UserID)

	found, err := cs.FindConversation(ctx, "driver", "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ID)

	_, err = cs.FindConversation(ctx, "recruiter", "u1")
	require.Error(t, err)
	assert.True(t, syerr.IsNotFound(err))
	assert.True(t, errors.Is(err, store.ErrNotFound))

	dup := &store.Conversation{ID: "c2", Role: "driver", UserID: "u1", CreatedAt: base, UpdatedAt: base}
	err = cs.CreateConversation(ctx, dup)
	require.Error(t, err)
	assert.True(t, syerr.IsConflict(err))

	_, err = cs.GetConversation(ctx, "missing")
	assert.True(t, syerr.IsNotFound(err))
}

func testActiveWindow(t *testing.T, s store.Store) {
	ctx := context.Background()
	cs := s.Conversations()
	require.NoError(t, cs.CreateConversation(ctx, &store.Conversation{
		ID: "c1", Role: "recruiter", UserID: "u1", CreatedAt: base, UpdatedAt: base,
	}))

	for i := range 5 {
		require.NoError(t, cs.AppendMessage(ctx, "c1", &store.Message{
			ID:        fmt.Sprintf("m%d", i),
			Role:      store.MessageRoleUser,
			Content:   fmt.Sprintf("turn %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, cs.AppendMessage(ctx, "c1", &store.Message{
		ID:   "m5",
		Role: store.MessageRoleAssistant,
		ToolCalls: []store.ToolCall{
			{ID: "call-1", Name: "find_matches", Input: []byte(`{"zip":"75001"}`)},
		},
		CreatedAt: base.Add(5 * time.Second),
	}))

	window, err := cs.GetActiveWindow(ctx, "c1", 3)
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.Equal(t, "m3", window[0].ID)
	assert.Equal(t, "m5", window[2].ID)
	require.Len(t, window[2].ToolCalls, 1)
	assert.Equal(t, "find_matches", window[2].ToolCalls[0].Name)
	assert.JSONEq(t, `{"zip":"75001"}`, string(window[2].ToolCalls[0].Input))

	err = cs.AppendMessage(ctx, "missing", &store.Message{
		ID: "x", Role: store.MessageRoleUser, Content: "hi", CreatedAt: base,
	})
	assert.Error(t, err)

	err = cs.AppendMessage(ctx, "c1", &store.Message{ID: "bad", Role: "robot", Content: "hi", CreatedAt: base})
	require.Error(t, err)
	assert.True(t, syerr.IsInvalidInput(err))
}

func testRuns(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Ledger()

	run := SeedRun(t, s, "r1")
	run.Status = store.RunStatusCompleted
	run.Outcome = "3 matches"
	run.LatencyMs = 42
	run.Rounds = 2
	run.Planning = map[string]any{"provider": "anthropic"}
	run.CompletedAt = base.Add(time.Minute)
	require.NoError(t, ls.UpdateRun(ctx, run))

	got, err := ls.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusCompleted, got.Status)
	assert.Equal(t, "3 matches", got.Outcome)
	assert.Equal(t, int64(42), got.LatencyMs)
	assert.Equal(t, 2, got.Rounds)
	assert.Equal(t, "anthropic", got.Planning["provider"])
	assert.True(t, got.CompletedAt.Equal(base.Add(time.Minute)))

	seedRunAt(t, s, "r2", base.Add(time.Hour))

	runs, err := ls.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID, "newest first")

	runs, err = ls.ListRuns(ctx, store.RunFilter{Status: store.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)

	err = ls.UpdateRun(ctx, &store.Run{ID: "missing", ConversationID: "c", CreatedAt: base})
	assert.True(t, syerr.IsNotFound(err))
}

func testSteps(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Ledger()
	SeedRun(t, s, "r1")

	outcomes := []store.StepOutcome{store.StepOutcomeExecuted, store.StepOutcomeRateLimited, store.StepOutcomeError}
	for i, outcome := range outcomes {
		step := &store.Step{
			ID:        fmt.Sprintf("s%d", i),
			RunID:     "r1",
			Domain:    "driver_road",
			Action:    "find_matches",
			ToolName:  "find_matches",
			RiskTier:  "read",
			Params:    map[string]any{"zip": "75001"},
			Outcome:   outcome,
			LatencyMs: int64(10 * (i + 1)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, ls.AppendStep(ctx, step))
		assert.Equal(t, i+1, step.Seq)
	}

	steps, err := ls.ListSteps(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, st := range steps {
		assert.Equal(t, i+1, st.Seq)
		assert.Equal(t, outcomes[i], st.Outcome)
	}
	assert.Equal(t, "75001", steps[0].Params["zip"])

	err = ls.AppendStep(ctx, &store.Step{ID: "orphan", RunID: "nope", Outcome: store.StepOutcomeExecuted, CreatedAt: base})
	assert.Error(t, err)

	err = ls.AppendStep(ctx, &store.Step{ID: "bad", RunID: "r1", Outcome: "maybe", CreatedAt: base})
	assert.True(t, syerr.IsInvalidInput(err))
}

func testGateResolveOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Ledger()
	SeedRun(t, s, "r1")

	require.NoError(t, ls.CreateGate(ctx, pendingGate("g1", "r1")))

	got, err := ls.GetGate(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, got.Pending())
	assert.Equal(t, "abc", got.Scope.ParamsDigest)
	assert.Equal(t, "driver-1", got.Params["to"])

	resolved, err := ls.ResolveGate(ctx, "g1", store.GateDecisionApproved, "admin-1", base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, store.GateDecisionApproved, resolved.Decision)
	assert.Equal(t, "admin-1", resolved.DecidedBy)

	_, err = ls.ResolveGate(ctx, "g1", store.GateDecisionRejected, "admin-2", base.Add(2*time.Minute))
	require.Error(t, err)
	assert.True(t, syerr.IsConflict(err))

	got, err = ls.GetGate(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, store.GateDecisionApproved, got.Decision, "first decision is never overwritten")
	assert.Equal(t, "admin-1", got.DecidedBy)

	_, err = ls.ResolveGate(ctx, "missing", store.GateDecisionApproved, "admin", base)
	assert.True(t, syerr.IsNotFound(err))
}

func testGateResolveRace(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Ledger()
	SeedRun(t, s, "r1")
	require.NoError(t, ls.CreateGate(ctx, pendingGate("g1", "r1")))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ls.ResolveGate(ctx, "g1", store.GateDecisionApproved, fmt.Sprintf("admin-%d", i), base)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func testListGates(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Ledger()
	SeedRun(t, s, "r1")
	SeedRun(t, s, "r2")

	g1 := pendingGate("g1", "r1")
	g2 := pendingGate("g2", "r2")
	g2.CreatedAt = base.Add(time.Second)
	require.NoError(t, ls.CreateGate(ctx, g1))
	require.NoError(t, ls.CreateGate(ctx, g2))
	_, err := ls.ResolveGate(ctx, "g1", store.GateDecisionRejected, "admin", base)
	require.NoError(t, err)

	pending, err := ls.ListGates(ctx, store.GateFilter{Decision: store.GateDecisionPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "g2", pending[0].ID)

	byRun, err := ls.ListGates(ctx, store.GateFilter{RunID: "r1"})
	require.NoError(t, err)
	require.Len(t, byRun, 1)
	assert.Equal(t, store.GateDecisionRejected, byRun[0].Decision)

	all, err := ls.ListGates(ctx, store.GateFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "g1", all[0].ID)
}

func testContinuations(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Ledger()
	SeedRun(t, s, "r1")
	require.NoError(t, ls.CreateGate(ctx, pendingGate("g1", "r1")))

	_, err := ls.LoadContinuation(ctx, "g1")
	assert.True(t, syerr.IsNotFound(err))

	require.NoError(t, ls.SaveContinuation(ctx, "g1", []byte(`{"version":1}`)))
	data, err := ls.LoadContinuation(ctx, "g1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(data))

	require.NoError(t, ls.SaveContinuation(ctx, "g1", []byte(`{"version":2}`)))
	data, err = ls.LoadContinuation(ctx, "g1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2}`, string(data))
}

func testAudit(t *testing.T, s store.Store) {
	ctx := context.Background()
	as := s.Audit()

	entries := []*store.AuditEntry{
		{ID: "a1", Timestamp: base, Action: "policy_decision", Actor: "u1", RunID: "r1", Domain: "driver_road", Result: "allowed"},
		{ID: "a2", Timestamp: base.Add(time.Second), Action: "gate.created", Actor: "u1", RunID: "r1", Details: map[string]any{"gate_id": "g1"}, Result: "pending"},
		{ID: "a3", Timestamp: base.Add(2 * time.Second), Action: "policy_decision", Actor: "u2", RunID: "r2", Result: "rate_limited"},
	}
	for _, e := range entries {
		require.NoError(t, as.Append(ctx, e))
	}

	got, err := as.Query(ctx, store.AuditFilter{Action: "policy_decision"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)

	got, err = as.Query(ctx, store.AuditFilter{RunID: "r1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "g1", got[1].Details["gate_id"])

	got, err = as.Query(ctx, store.AuditFilter{From: base.Add(time.Second), To: base.Add(2 * time.Second)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].ID)
}

func testCounters(t *testing.T, s store.Store) {
	ctx := context.Background()
	cs := s.Counters()

	for i := int64(1); i <= 3; i++ {
		n, err := cs.Increment(ctx, "u1:driver_road.find_matches", base)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := cs.Increment(ctx, "u1:driver_road.find_matches", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "new window starts fresh")

	n, err = cs.Increment(ctx, "u2:driver_road.find_matches", base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "keys are independent")

	pruned, err := cs.Prune(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	n, err = cs.Increment(ctx, "u1:driver_road.find_matches", base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
