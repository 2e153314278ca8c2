// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package policy_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/policy"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	"github.com/switchyard-dev/switchyard/internal/store/memory"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newEnforcer(t *testing.T, opts ...policy.Option) (*policy.Enforcer, *memory.Store) {
	t.Helper()
	lim := policy.NewMemoryLimiter()
	t.Cleanup(func() { _ = lim.Close() })
	st := memory.New()
	opts = append([]policy.Option{policy.WithAudit(st.Audit())}, opts...)
	return policy.NewEnforcer(testRegistry(t), lim, opts...), st
}

func approvedGate(id string, scope store.GateScope) *store.Gate {
	return &store.Gate{
		ID:       id,
		RunID:    scope.RunID,
		Scope:    scope,
		Decision: store.GateDecisionApproved,
	}
}

// ---------------------------------------------------------------------------
// Tiers
// ---------------------------------------------------------------------------

func TestAuthorize_Tiers(t *testing.T) {
	enf, _ := newEnforcer(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		domain       string
		action       string
		wantAllow    bool
		wantApproval bool
		wantReason   policy.Reason
		wantTier     registry.RiskTier
	}{
		{"read allowed", "driver_tools", "find_matches", true, false, policy.ReasonNone, registry.TierRead},
		{"execute_low allowed", "driver_tools", "save_job", true, false, policy.ReasonNone, registry.TierExecuteLow},
		{"execute_high needs gate", "recruiter_tools", "send_message", false, true, policy.ReasonApprovalRequired, registry.TierExecuteHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := enf.Authorize(ctx, policy.Request{UserID: "u-" + tt.name, Domain: tt.domain, Action: tt.action})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllow, d.Allow)
			assert.Equal(t, tt.wantApproval, d.RequiresApproval)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantTier, d.Tier)
		})
	}
}

func TestAuthorize_UnknownAction(t *testing.T) {
	enf, st := newEnforcer(t)

	_, err := enf.Authorize(context.Background(), policy.Request{UserID: "u1", Domain: "driver_tools", Action: "nope"})
	require.Error(t, err)
	assert.True(t, syerr.IsNotFound(err))

	entries, err := st.Audit().Query(context.Background(), store.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// ---------------------------------------------------------------------------
// Rate limits
// ---------------------------------------------------------------------------

func TestAuthorize_RateLimitTenThenReject(t *testing.T) {
	enf, _ := newEnforcer(t)
	ctx := context.Background()
	req := policy.Request{UserID: "driver-1", Domain: "driver_tools", Action: "find_matches"}

	for i := 1; i <= 10; i++ {
		d, err := enf.Authorize(ctx, req)
		require.NoError(t, err)
		require.True(t, d.Allow, "call %d", i)
		assert.Equal(t, int64(i), d.Count)
	}

	d, err := enf.Authorize(ctx, req)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, policy.ReasonRateLimited, d.Reason)
	assert.Equal(t, int64(11), d.Count)

	// Another user has its own quota.
	d, err = enf.Authorize(ctx, policy.Request{UserID: "driver-2", Domain: "driver_tools", Action: "find_matches"})
	require.NoError(t, err)
	assert.True(t, d.Allow)
}

func TestAuthorize_RejectedAttemptsStillConsumeQuota(t *testing.T) {
	enf, _ := newEnforcer(t)
	ctx := context.Background()
	req := policy.Request{UserID: "u1", Domain: "driver_tools", Action: "save_job"}

	for range 5 {
		_, err := enf.Authorize(ctx, req)
		require.NoError(t, err)
	}
	d, err := enf.Authorize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(6), d.Count)
	assert.Equal(t, policy.ReasonRateLimited, d.Reason)
}

func TestAuthorize_WindowReset(t *testing.T) {
	clock := newFakeClock()
	lim := policy.NewMemoryLimiter(policy.WithClock(clock.Now))
	t.Cleanup(func() { _ = lim.Close() })
	enf := policy.NewEnforcer(testRegistry(t), lim, policy.WithWindow(time.Minute))
	ctx := context.Background()
	req := policy.Request{UserID: "u1", Domain: "driver_tools", Action: "save_job"}

	for range 2 {
		d, err := enf.Authorize(ctx, req)
		require.NoError(t, err)
		require.True(t, d.Allow)
	}
	d, err := enf.Authorize(ctx, req)
	require.NoError(t, err)
	require.False(t, d.Allow)

	clock.Advance(time.Minute)
	d, err = enf.Authorize(ctx, req)
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.Equal(t, int64(1), d.Count)
}

func TestAuthorize_NoUserSkipsRateLimit(t *testing.T) {
	enf, _ := newEnforcer(t)
	ctx := context.Background()

	for range 20 {
		d, err := enf.Authorize(ctx, policy.Request{Domain: "driver_tools", Action: "save_job"})
		require.NoError(t, err)
		require.True(t, d.Allow)
		assert.Zero(t, d.Count)
	}

	// Risk policy still applies.
	d, err := enf.Authorize(ctx, policy.Request{Domain: "recruiter_tools", Action: "send_message"})
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, policy.ReasonApprovalRequired, d.Reason)
}

func TestAuthorize_ConcurrentIncrementThenCheck(t *testing.T) {
	enf, _ := newEnforcer(t)
	ctx := context.Background()
	req := policy.Request{UserID: "u1", Domain: "driver_tools", Action: "find_matches"}

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := enf.Authorize(ctx, req)
			if err == nil && d.Allow {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(10), allowed.Load())
}

func TestAuthorize_LimiterFailure(t *testing.T) {
	enf := policy.NewEnforcer(testRegistry(t), failingLimiter{})
	_, err := enf.Authorize(context.Background(), policy.Request{UserID: "u1", Domain: "driver_tools", Action: "find_matches"})
	require.Error(t, err)
	assert.Equal(t, syerr.CodePolicyLimiterFailure, syerr.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Approved gates
// ---------------------------------------------------------------------------

func TestAuthorize_ApprovedGateAdmits(t *testing.T) {
	enf, _ := newEnforcer(t)
	params := map[string]any{"to": "driver-9", "body": "Hi"}
	scope := policy.Scope("run-1", "recruiter_tools", "send_message", params)

	auth, err := policy.Authorized(approvedGate("gate-1", scope))
	require.NoError(t, err)

	d, err := enf.Authorize(context.Background(), policy.Request{
		UserID: "rec-1", RunID: "run-1",
		Domain: "recruiter_tools", Action: "send_message",
		Params: map[string]any{"body": "Hi", "to": "driver-9"},
		Auth:   auth,
	})
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.Equal(t, "gate-1", d.GateID)
}

func TestAuthorize_GateScopeMismatch(t *testing.T) {
	enf, _ := newEnforcer(t)
	params := map[string]any{"to": "driver-9", "body": "Hi"}
	auth, err := policy.Authorized(approvedGate("gate-1",
		policy.Scope("run-1", "recruiter_tools", "send_message", params)))
	require.NoError(t, err)

	tests := []struct {
		name  string
		runID string
		param map[string]any
	}{
		{"different params", "run-1", map[string]any{"to": "driver-10", "body": "Hi"}},
		{"different run", "run-2", params},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enf.Authorize(context.Background(), policy.Request{
				UserID: "rec-1", RunID: tt.runID,
				Domain: "recruiter_tools", Action: "send_message",
				Params: tt.param, Auth: auth,
			})
			require.Error(t, err)
			assert.Equal(t, syerr.CodePolicyGateDenied, syerr.CodeOf(err))
			assert.True(t, syerr.IsUnauthorized(err))
		})
	}
}

func TestAuthorized_RequiresApprovedGate(t *testing.T) {
	_, err := policy.Authorized(nil)
	require.Error(t, err)

	for _, decision := range []store.GateDecision{store.GateDecisionPending, store.GateDecisionRejected} {
		g := approvedGate("g", store.GateScope{RunID: "r"})
		g.Decision = decision
		_, err := policy.Authorized(g)
		require.Error(t, err, decision)
		assert.Equal(t, syerr.CodePolicyGateDenied, syerr.CodeOf(err))
	}

	assert.False(t, policy.Unauthorized().IsAuthorized())
	_, ok := policy.Unauthorized().GateID()
	assert.False(t, ok)
}

func TestParamsDigest_StableAcrossOrderAndRoundTrip(t *testing.T) {
	a := policy.ParamsDigest(map[string]any{"zip": "75001", "minCPM": 0.55, "n": 3})
	b := policy.ParamsDigest(map[string]any{"n": float64(3), "minCPM": 0.55, "zip": "75001"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, policy.ParamsDigest(map[string]any{"zip": "75002"}))
	assert.Equal(t, policy.ParamsDigest(nil), policy.ParamsDigest(map[string]any{}))
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

func TestAuthorize_AuditsEveryDecision(t *testing.T) {
	enf, st := newEnforcer(t)
	ctx := context.Background()

	_, err := enf.Authorize(ctx, policy.Request{UserID: "u1", RunID: "run-1", Role: registry.RoleDriver, Domain: "driver_tools", Action: "find_matches"})
	require.NoError(t, err)
	_, err = enf.Authorize(ctx, policy.Request{UserID: "u1", RunID: "run-1", Domain: "recruiter_tools", Action: "send_message"})
	require.NoError(t, err)

	entries, err := st.Audit().Query(ctx, store.AuditFilter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	results := map[string]bool{}
	for _, e := range entries {
		assert.Equal(t, "policy_decision", e.Action)
		assert.Equal(t, "u1", e.Actor)
		results[e.Result] = true
	}
	assert.True(t, results["allowed"])
	assert.True(t, results["approval_required"])
}

func TestAuthorize_AuditFailureIsBestEffort(t *testing.T) {
	lim := policy.NewMemoryLimiter()
	t.Cleanup(func() { _ = lim.Close() })
	audit := &failingAudit{}
	enf := policy.NewEnforcer(testRegistry(t), lim, policy.WithAudit(audit))

	for range policy.AuditLogEscalationThreshold + 1 {
		d, err := enf.Authorize(context.Background(), policy.Request{UserID: "u1", Domain: "driver_tools", Action: "find_matches"})
		require.NoError(t, err)
		assert.True(t, d.Allow)
	}
	assert.Equal(t, int64(policy.AuditLogEscalationThreshold+1), enf.AuditFailCount())
	assert.Equal(t, int64(policy.AuditLogEscalationThreshold+1), enf.AuditFailTotal())
	assert.Equal(t, policy.AuditLogEscalationThreshold+1, audit.calls)
}
