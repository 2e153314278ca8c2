// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package metrics exposes the orchestrator's Prometheus collectors.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the orchestrator collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	PolicyDecisions *prometheus.CounterVec
	ToolInvocations *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
	GateEvents      *prometheus.CounterVec
	GatesPending    prometheus.Gauge
	Turns           *prometheus.CounterVec
	TurnRounds      prometheus.Histogram
	NotifyFailures  prometheus.Counter
}

// New registers the collectors with the default registry once and returns
// the shared instance.
//
// Metrics:
//   - switchyard_policy_decisions_total{domain,tier,outcome}
//   - switchyard_tool_invocations_total{domain,outcome}
//   - switchyard_tool_duration_seconds{domain}
//   - switchyard_gate_events_total{event}
//   - switchyard_gates_pending
//   - switchyard_turns_total{role,result}
//   - switchyard_turn_rounds
//   - switchyard_notify_failures_total
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			PolicyDecisions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "switchyard_policy_decisions_total",
					Help: "Authorization decisions by domain, tier and outcome",
				},
				[]string{"domain", "tier", "outcome"},
			),
			ToolInvocations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "switchyard_tool_invocations_total",
					Help: "Recorded tool invocation attempts by step outcome",
				},
				[]string{"domain", "outcome"},
			),
			ToolDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "switchyard_tool_duration_seconds",
					Help:    "Collaborator call latency",
					Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
				},
				[]string{"domain"},
			),
			GateEvents: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "switchyard_gate_events_total",
					Help: "Approval gate lifecycle events",
				},
				[]string{"event"},
			),
			GatesPending: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "switchyard_gates_pending",
					Help: "Gates created minus gates resolved by this process",
				},
			),
			Turns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "switchyard_turns_total",
					Help: "Handled agent turns by role and result",
				},
				[]string{"role", "result"},
			),
			TurnRounds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "switchyard_turn_rounds",
					Help:    "Reasoning rounds used per turn",
					Buckets: prometheus.LinearBuckets(1, 1, 8),
				},
			),
			NotifyFailures: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "switchyard_notify_failures_total",
					Help: "Gate event publications that failed",
				},
			),
		}
	})
	return globalMetrics
}

// RecordDecision counts one authorization decision.
func (m *Metrics) RecordDecision(domain, tier, outcome string) {
	if m == nil {
		return
	}
	m.PolicyDecisions.WithLabelValues(domain, tier, outcome).Inc()
}

// RecordInvocation counts a step and, for executed calls, its latency.
func (m *Metrics) RecordInvocation(domain, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.ToolInvocations.WithLabelValues(domain, outcome).Inc()
	if latency > 0 {
		m.ToolDuration.WithLabelValues(domain).Observe(latency.Seconds())
	}
}

// GateCreated counts a new pending gate.
func (m *Metrics) GateCreated() {
	if m == nil {
		return
	}
	m.GateEvents.WithLabelValues("created").Inc()
	m.GatesPending.Inc()
}

// GateResolved counts a terminal gate decision.
func (m *Metrics) GateResolved(decision string) {
	if m == nil {
		return
	}
	m.GateEvents.WithLabelValues(decision).Inc()
	m.GatesPending.Dec()
}

// RecordTurn counts a finished turn or resume.
func (m *Metrics) RecordTurn(role, result string, rounds int) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(role, result).Inc()
	if rounds > 0 {
		m.TurnRounds.Observe(float64(rounds))
	}
}

// NotifyFailed counts a failed gate event publication.
func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
