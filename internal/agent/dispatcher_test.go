// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package agent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/agent"
	"github.com/switchyard-dev/switchyard/internal/ledger"
	"github.com/switchyard-dev/switchyard/internal/policy"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func TestNewDispatcher_RequiresDependencies(t *testing.T) {
	_, err := agent.NewDispatcher(agent.DispatcherConfig{})
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeAgentLoopInvalidInput))
	assert.Contains(t, err.Error(), "Enforcer")
}

func (h *harness) startRun(t *testing.T, role registry.Role, userID string) *store.Run {
	t.Helper()
	ctx := context.Background()
	conv, err := h.convs.Ensure(ctx, role, userID)
	require.NoError(t, err)
	run, err := h.ledger.StartRun(ctx, ledger.StartRequest{
		ConversationID: conv.ID,
		Role:           string(role),
		UserID:         userID,
		RequestText:    "test",
	})
	require.NoError(t, err)
	return run
}

func TestDispatcher_Timeout(t *testing.T) {
	h := newHarness(t, nil, withToolTimeout(20*time.Millisecond))
	run := h.startRun(t, registry.RoleDriver, "drv-1")

	res, err := h.disp.Execute(context.Background(), agent.Call{
		Name: "driver_road",
		Input: map[string]any{
			"action": "report_road_hazard",
			"params": map[string]any{"lat": 32.7, "lng": -96.8, "kind": "debris"},
		},
	}, agent.Invocation{UserID: "drv-1", Role: registry.RoleDriver, RunID: run.ID, Auth: policy.Unauthorized()})
	require.NoError(t, err)

	assert.Equal(t, store.StepOutcomeError, res.Outcome)
	assert.True(t, syerr.HasCode(res.Err, syerr.CodeToolTimeout), "got %v", res.Err)
	assert.Equal(t, "error: the requested action failed", res.Content())

	steps := h.steps(t, run.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, "driver_road", steps[0].Domain)
	assert.Equal(t, "report_road_hazard", steps[0].Action)
	assert.Equal(t, store.StepOutcomeError, steps[0].Outcome)
	assert.Equal(t, res.StepID, steps[0].ID)
}

func TestDispatcher_CollaboratorErrorIsNormalized(t *testing.T) {
	h := newHarness(t, nil)
	run := h.startRun(t, registry.RoleDriver, "drv-1")

	res, err := h.disp.Execute(context.Background(),
		agent.Call{Name: "explain_match", Input: map[string]any{"carrierDot": "42"}},
		agent.Invocation{UserID: "drv-1", Role: registry.RoleDriver, RunID: run.ID})
	require.NoError(t, err)

	assert.Equal(t, store.StepOutcomeError, res.Outcome)
	assert.True(t, syerr.HasCode(res.Err, syerr.CodeToolCollaboratorFailure))
	assert.NotContains(t, res.Err.Error(), "match_explanations")
	assert.NotContains(t, res.Content(), "match_explanations")

	steps := h.steps(t, run.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, "the requested action failed", steps[0].ResultSummary)
}

func TestDispatcher_InvisibleActionRecordsNothing(t *testing.T) {
	h := newHarness(t, nil)
	run := h.startRun(t, registry.RoleCarrier, "car-1")

	_, err := h.disp.Execute(context.Background(),
		agent.Call{Name: "find_matches", Input: map[string]any{"zip": "75001"}},
		agent.Invocation{UserID: "car-1", Role: registry.RoleCarrier, RunID: run.ID})
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeRegistryActionNotFound))
	assert.Contains(t, err.Error(), "Unknown action 'find_matches'")
	assert.Empty(t, h.steps(t, run.ID))
	assert.Zero(t, h.collab.finds.Load())
}

func TestDispatcher_RouterCallWithUnknownAction(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.disp.Execute(context.Background(),
		agent.Call{Name: "driver_road", Input: map[string]any{"action": "summon_tow_truck"}},
		agent.Invocation{UserID: "drv-1", Role: registry.RoleDriver})
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeRegistryActionNotFound))
}

func TestDispatcher_UnboundTargetIsCollaboratorFailure(t *testing.T) {
	h := newHarness(t, nil)

	// get_road_conditions has no function registered in the harness.
	res, err := h.disp.Execute(context.Background(),
		agent.Call{Name: "get_road_conditions", Input: map[string]any{"state": "TX"}},
		agent.Invocation{UserID: "drv-1", Role: registry.RoleDriver})
	require.NoError(t, err)
	assert.Equal(t, store.StepOutcomeError, res.Outcome)
	assert.True(t, syerr.HasCode(res.Err, syerr.CodeToolCollaboratorFailure))
}

func TestToolResult_Content(t *testing.T) {
	long := strings.Repeat("x", 10)
	tests := []struct {
		name string
		res  agent.ToolResult
		want string
	}{
		{"nil output", agent.ToolResult{Outcome: store.StepOutcomeExecuted}, "ok"},
		{"string output", agent.ToolResult{Outcome: store.StepOutcomeExecuted, Output: long}, long},
		{"structured output", agent.ToolResult{Outcome: store.StepOutcomeExecuted, Output: map[string]any{"count": 3}}, `{"count":3}`},
		{
			"rate limited",
			agent.ToolResult{Outcome: store.StepOutcomeRateLimited, Action: "find_matches"},
			"error: rate limit exceeded for find_matches; try again later",
		},
		{
			"awaiting approval",
			agent.ToolResult{Outcome: store.StepOutcomeApprovalRequired, Action: "send_message"},
			"pending: send_message is awaiting human approval",
		},
		{"error", agent.ToolResult{Outcome: store.StepOutcomeError, Error: "authorization failed"}, "error: authorization failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Content())
		})
	}
}

func TestDispatcher_GateDescriptionIsRedacted(t *testing.T) {
	h := newHarness(t, nil)
	run := h.startRun(t, registry.RoleRecruiter, "rec-1")

	body := "Your SSN 123-45-6789 is on file"
	res, err := h.disp.Execute(context.Background(),
		agent.Call{Name: "send_message", Input: map[string]any{"to": "drv-9", "body": body}},
		agent.Invocation{UserID: "rec-1", Role: registry.RoleRecruiter, RunID: run.ID, Auth: policy.Unauthorized()})
	require.NoError(t, err)
	require.Equal(t, store.StepOutcomeApprovalRequired, res.Outcome)

	g := h.gate(t, res.GateID)
	assert.Contains(t, g.Description, "[REDACTED]")
	assert.NotContains(t, g.Description, "123-45-6789")
	// The stored invocation is replayed on approval and stays intact.
	assert.Equal(t, body, g.Params["body"])
	assert.Zero(t, h.collab.sends.Load())
}
