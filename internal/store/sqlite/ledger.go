// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/switchyard-dev/switchyard/internal/store"
)

type ledgerStore struct {
	db *sql.DB
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func marshalMap[M ~map[string]V, V any](m M) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMap(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" || raw == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ---------- runs ----------

const runColumns = `id, conversation_id, role, user_id, request_text, status, outcome, latency_ms, rounds,
input_tokens, output_tokens, planning, created_at, updated_at, completed_at`

func (s *ledgerStore) CreateRun(ctx context.Context, run *store.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	planning, err := marshalMap(run.Planning)
	if err != nil {
		return fmt.Errorf("marshalling run planning: %w", err)
	}

	const q = `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		run.ID, run.ConversationID, run.Role, run.UserID, run.RequestText, string(run.Status),
		run.Outcome, run.LatencyMs, run.Rounds, run.InputTokens, run.OutputTokens, planning,
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt), formatTime(run.CompletedAt),
	)
	if isUniqueViolation(err) {
		return store.Conflict("run", run.ID, "already exists")
	}
	if isForeignKeyViolation(err) {
		return store.NotFound("conversation", run.ConversationID)
	}
	if err != nil {
		return fmt.Errorf("creating run %s: %w", run.ID, err)
	}
	return nil
}

func scanRun(sc scanner) (*store.Run, error) {
	var r store.Run
	var planning, createdAt, updatedAt, completedAt string
	if err := sc.Scan(
		&r.ID, &r.ConversationID, &r.Role, &r.UserID, &r.RequestText, &r.Status,
		&r.Outcome, &r.LatencyMs, &r.Rounds, &r.InputTokens, &r.OutputTokens, &planning,
		&createdAt, &updatedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if r.Planning, err = unmarshalMap(planning); err != nil {
		return nil, fmt.Errorf("unmarshalling run %s planning: %w", r.ID, err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing run %s created_at: %w", r.ID, err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing run %s updated_at: %w", r.ID, err)
	}
	if r.CompletedAt, err = parseTime(completedAt); err != nil {
		return nil, fmt.Errorf("parsing run %s completed_at: %w", r.ID, err)
	}
	return &r, nil
}

func (s *ledgerStore) GetRun(ctx context.Context, id string) (*store.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("run", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}
	return run, nil
}

func (s *ledgerStore) UpdateRun(ctx context.Context, run *store.Run) error {
	planning, err := marshalMap(run.Planning)
	if err != nil {
		return fmt.Errorf("marshalling run planning: %w", err)
	}

	const q = `UPDATE runs SET status = ?, outcome = ?, latency_ms = ?, rounds = ?, input_tokens = ?,
output_tokens = ?, planning = ?, updated_at = ?, completed_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, q,
		string(run.Status), run.Outcome, run.LatencyMs, run.Rounds, run.InputTokens,
		run.OutputTokens, planning, formatTime(run.UpdatedAt), formatTime(run.CompletedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for run %s: %w", run.ID, err)
	}
	if rows == 0 {
		return store.NotFound("run", run.ID)
	}
	return nil
}

func (s *ledgerStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT ` + runColumns + ` FROM runs`)

	var conditions []string
	var args []any
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ConversationID != "" {
		conditions = append(conditions, "conversation_id = ?")
		args = append(args, filter.ConversationID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	qb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var runs []*store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// ---------- steps ----------

func (s *ledgerStore) AppendStep(ctx context.Context, step *store.Step) error {
	if err := step.Validate(); err != nil {
		return err
	}
	params, err := marshalMap(step.Params)
	if err != nil {
		return fmt.Errorf("marshalling step params: %w", err)
	}

	// The sequence number is computed inside the insert so concurrent
	// appends cannot collide silently; UNIQUE(run_id, seq) backs it up.
	const q = `INSERT INTO steps (id, run_id, seq, domain, action, tool_name, risk_tier, params,
result_summary, outcome, latency_ms, gate_id, created_at)
SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ? FROM steps WHERE run_id = ?
RETURNING seq`
	err = s.db.QueryRowContext(ctx, q,
		step.ID, step.RunID, step.Domain, step.Action, step.ToolName, step.RiskTier, params,
		step.ResultSummary, string(step.Outcome), step.LatencyMs, step.GateID,
		formatTime(step.CreatedAt), step.RunID,
	).Scan(&step.Seq)
	if isForeignKeyViolation(err) {
		return store.NotFound("run", step.RunID)
	}
	if isUniqueViolation(err) {
		return store.Conflict("step", step.ID, "duplicate id or sequence")
	}
	if err != nil {
		return fmt.Errorf("appending step %s to run %s: %w", step.ID, step.RunID, err)
	}
	return nil
}

func (s *ledgerStore) ListSteps(ctx context.Context, runID string) ([]*store.Step, error) {
	const q = `SELECT id, run_id, seq, domain, action, tool_name, risk_tier, params, result_summary,
outcome, latency_ms, gate_id, created_at FROM steps WHERE run_id = ? ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("listing steps for run %s: %w", runID, err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var steps []*store.Step
	for rows.Next() {
		var st store.Step
		var params, createdAt string
		if err := rows.Scan(
			&st.ID, &st.RunID, &st.Seq, &st.Domain, &st.Action, &st.ToolName, &st.RiskTier,
			&params, &st.ResultSummary, &st.Outcome, &st.LatencyMs, &st.GateID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning step row: %w", err)
		}
		if st.Params, err = unmarshalMap(params); err != nil {
			return nil, fmt.Errorf("unmarshalling step %s params: %w", st.ID, err)
		}
		if st.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing step %s created_at: %w", st.ID, err)
		}
		steps = append(steps, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating steps: %w", err)
	}
	return steps, nil
}

// ---------- gates ----------

const gateColumns = `id, run_id, step_id, user_id, role, scope, tool_name, description, risk_tier,
params, decision, decided_by, created_at, decided_at`

func (s *ledgerStore) CreateGate(ctx context.Context, gate *store.Gate) error {
	if err := gate.Validate(); err != nil {
		return err
	}
	scope, err := json.Marshal(gate.Scope)
	if err != nil {
		return fmt.Errorf("marshalling gate scope: %w", err)
	}
	params, err := marshalMap(gate.Params)
	if err != nil {
		return fmt.Errorf("marshalling gate params: %w", err)
	}

	const q = `INSERT INTO gates (` + gateColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		gate.ID, gate.RunID, gate.StepID, gate.UserID, gate.Role, string(scope), gate.ToolName,
		gate.Description, gate.RiskTier, params, string(gate.Decision), gate.DecidedBy,
		formatTime(gate.CreatedAt), formatTime(gate.DecidedAt),
	)
	if isUniqueViolation(err) {
		return store.Conflict("gate", gate.ID, "already exists")
	}
	if isForeignKeyViolation(err) {
		return store.NotFound("run", gate.RunID)
	}
	if err != nil {
		return fmt.Errorf("creating gate %s: %w", gate.ID, err)
	}
	return nil
}

func scanGate(sc scanner) (*store.Gate, error) {
	var g store.Gate
	var scope, params, createdAt, decidedAt string
	if err := sc.Scan(
		&g.ID, &g.RunID, &g.StepID, &g.UserID, &g.Role, &scope, &g.ToolName, &g.Description,
		&g.RiskTier, &params, &g.Decision, &g.DecidedBy, &createdAt, &decidedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(scope), &g.Scope); err != nil {
		return nil, fmt.Errorf("unmarshalling gate %s scope: %w", g.ID, err)
	}
	var err error
	if g.Params, err = unmarshalMap(params); err != nil {
		return nil, fmt.Errorf("unmarshalling gate %s params: %w", g.ID, err)
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing gate %s created_at: %w", g.ID, err)
	}
	if g.DecidedAt, err = parseTime(decidedAt); err != nil {
		return nil, fmt.Errorf("parsing gate %s decided_at: %w", g.ID, err)
	}
	return &g, nil
}

func (s *ledgerStore) GetGate(ctx context.Context, id string) (*store.Gate, error) {
	g, err := scanGate(s.db.QueryRowContext(ctx, `SELECT `+gateColumns+` FROM gates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("gate", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting gate %s: %w", id, err)
	}
	return g, nil
}

func (s *ledgerStore) ListGates(ctx context.Context, filter store.GateFilter) ([]*store.Gate, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT ` + gateColumns + ` FROM gates`)

	var conditions []string
	var args []any
	if filter.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Decision != "" {
		conditions = append(conditions, "decision = ?")
		args = append(args, string(filter.Decision))
	}
	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	qb.WriteString(" ORDER BY created_at ASC, rowid ASC LIMIT ? OFFSET ?")
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing gates: %w", err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var gates []*store.Gate
	for rows.Next() {
		g, err := scanGate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning gate row: %w", err)
		}
		gates = append(gates, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gates: %w", err)
	}
	return gates, nil
}

func (s *ledgerStore) ResolveGate(ctx context.Context, id string, decision store.GateDecision, decidedBy string, at time.Time) (*store.Gate, error) {
	// Compare-and-set on the pending state: concurrent resolvers race on the
	// row and exactly one sees RowsAffected == 1.
	const q = `UPDATE gates SET decision = ?, decided_by = ?, decided_at = ? WHERE id = ? AND decision = 'pending'`
	result, err := s.db.ExecContext(ctx, q, string(decision), decidedBy, formatTime(at), id)
	if err != nil {
		return nil, fmt.Errorf("resolving gate %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected for gate %s: %w", id, err)
	}

	current, err := s.GetGate(ctx, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, store.Conflict("gate", id, "already "+string(current.Decision))
	}
	return current, nil
}

func (s *ledgerStore) SaveContinuation(ctx context.Context, gateID string, data []byte) error {
	const q = `INSERT INTO continuations (gate_id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(gate_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, q, gateID, data, formatTime(time.Now()))
	if isForeignKeyViolation(err) {
		return store.NotFound("gate", gateID)
	}
	if err != nil {
		return fmt.Errorf("saving continuation for gate %s: %w", gateID, err)
	}
	return nil
}

func (s *ledgerStore) LoadContinuation(ctx context.Context, gateID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM continuations WHERE gate_id = ?`, gateID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("continuation", gateID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading continuation for gate %s: %w", gateID, err)
	}
	return data, nil
}
