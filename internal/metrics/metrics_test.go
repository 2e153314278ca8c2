// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/metrics"
)

func TestNew_Singleton(t *testing.T) {
	a := metrics.New()
	b := metrics.New()
	require.NotNil(t, a)
	assert.Same(t, a, b)
}

func TestRecorders(t *testing.T) {
	m := metrics.New()

	before := testutil.ToFloat64(m.PolicyDecisions.WithLabelValues("driver_tools", "read", "allowed"))
	m.RecordDecision("driver_tools", "read", "allowed")
	assert.Equal(t, before+1, testutil.ToFloat64(m.PolicyDecisions.WithLabelValues("driver_tools", "read", "allowed")))

	before = testutil.ToFloat64(m.ToolInvocations.WithLabelValues("driver_tools", "executed"))
	m.RecordInvocation("driver_tools", "executed", 12*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(m.ToolInvocations.WithLabelValues("driver_tools", "executed")))

	pending := testutil.ToFloat64(m.GatesPending)
	m.GateCreated()
	assert.Equal(t, pending+1, testutil.ToFloat64(m.GatesPending))
	m.GateResolved("approved")
	assert.Equal(t, pending, testutil.ToFloat64(m.GatesPending))
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordDecision("d", "read", "allowed")
		m.RecordInvocation("d", "executed", time.Second)
		m.GateCreated()
		m.GateResolved("rejected")
		m.RecordTurn("driver", "answer", 2)
		m.NotifyFailed()
	})
}
