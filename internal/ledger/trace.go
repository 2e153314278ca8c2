// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/switchyard-dev/switchyard/internal/store"
)

// Summary aggregates a run's steps and gates.
type Summary struct {
	StepCount      int                       `json:"step_count"`
	Outcomes       map[store.StepOutcome]int `json:"outcomes"`
	GateCount      int                       `json:"gate_count"`
	PendingGates   int                       `json:"pending_gates"`
	TotalLatencyMs int64                     `json:"total_latency_ms"`
	// CriticalPathMs is the sum of step latencies; steps in a run execute
	// strictly one after another.
	CriticalPathMs int64 `json:"critical_path_ms"`
}

// TimelineEvent is one step or gate in time order.
type TimelineEvent struct {
	At       time.Time `json:"at"`
	Kind     string    `json:"kind"`
	ID       string    `json:"id"`
	ToolName string    `json:"tool_name"`
	Status   string    `json:"status"`
}

// Trace is the full execution record of a run.
type Trace struct {
	Run      *store.Run      `json:"run"`
	Steps    []*store.Step   `json:"steps"`
	Gates    []*store.Gate   `json:"gates"`
	Summary  Summary         `json:"summary"`
	Timeline []TimelineEvent `json:"timeline"`
}

// Trace loads a run with its steps and gates.
func (s *Service) Trace(ctx context.Context, runID string) (*Trace, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	steps, err := s.runs.ListSteps(ctx, runID)
	if err != nil {
		return nil, err
	}
	gates, err := s.runs.ListGates(ctx, store.GateFilter{RunID: runID})
	if err != nil {
		return nil, err
	}
	return &Trace{
		Run:      run,
		Steps:    steps,
		Gates:    gates,
		Summary:  summarize(steps, gates),
		Timeline: timeline(steps, gates),
	}, nil
}

func summarize(steps []*store.Step, gates []*store.Gate) Summary {
	sum := Summary{
		StepCount: len(steps),
		Outcomes:  map[store.StepOutcome]int{},
		GateCount: len(gates),
	}
	for _, st := range steps {
		sum.Outcomes[st.Outcome]++
		sum.TotalLatencyMs += st.LatencyMs
	}
	sum.CriticalPathMs = sum.TotalLatencyMs
	for _, g := range gates {
		if g.Pending() {
			sum.PendingGates++
		}
	}
	return sum
}

func timeline(steps []*store.Step, gates []*store.Gate) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(steps)+len(gates))
	for _, st := range steps {
		events = append(events, TimelineEvent{
			At: st.CreatedAt, Kind: "step", ID: st.ID, ToolName: st.ToolName, Status: string(st.Outcome),
		})
	}
	for _, g := range gates {
		events = append(events, TimelineEvent{
			At: g.CreatedAt, Kind: "gate", ID: g.ID, ToolName: g.ToolName, Status: string(g.Decision),
		})
	}
	// Stable keeps steps ahead of the gate they raised at the same instant.
	sort.SliceStable(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	return events
}

// RunSummary is a run with its derived execution figures.
type RunSummary struct {
	Run *store.Run `json:"run"`
	Summary
}

// RecentRuns lists runs newest first with their step and gate figures.
func (s *Service) RecentRuns(ctx context.Context, filter store.RunFilter) ([]RunSummary, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	runs, err := s.runs.ListRuns(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		steps, err := s.runs.ListSteps(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		gates, err := s.runs.ListGates(ctx, store.GateFilter{RunID: run.ID})
		if err != nil {
			return nil, err
		}
		out = append(out, RunSummary{Run: run, Summary: summarize(steps, gates)})
	}
	return out, nil
}
