// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/switchyard-dev/switchyard/internal/store"
)

// ---------- auditStore ----------

type auditStore struct {
	db *sql.DB
}

func (s *auditStore) Append(ctx context.Context, entry *store.AuditEntry) error {
	details, err := marshalMap(entry.Details)
	if err != nil {
		return fmt.Errorf("marshalling audit details: %w", err)
	}

	const q = `INSERT INTO audit_log (id, timestamp, action, actor, run_id, domain, details, result)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		entry.ID, formatTime(entry.Timestamp), entry.Action, entry.Actor,
		entry.RunID, entry.Domain, details, entry.Result,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry %s: %w", entry.ID, err)
	}
	return nil
}

func (s *auditStore) Query(ctx context.Context, filter store.AuditFilter) ([]*store.AuditEntry, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT id, timestamp, action, actor, run_id, domain, details, result FROM audit_log`)

	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, formatTime(filter.To))
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	qb.WriteString(" ORDER BY timestamp ASC, rowid ASC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	qb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var entries []*store.AuditEntry
	for rows.Next() {
		var e store.AuditEntry
		var ts, detailsJSON string
		if err := rows.Scan(
			&e.ID, &ts, &e.Action, &e.Actor, &e.RunID, &e.Domain, &detailsJSON, &e.Result,
		); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parsing audit entry %s timestamp: %w", e.ID, err)
		}
		if e.Details, err = unmarshalMap(detailsJSON); err != nil {
			return nil, fmt.Errorf("unmarshalling audit details: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// ---------- counterStore ----------

type counterStore struct {
	db *sql.DB
}

func (s *counterStore) Increment(ctx context.Context, key string, windowStart time.Time) (int64, error) {
	// Single statement upsert: the increment and the read of the new value
	// are atomic with respect to other writers.
	const q = `INSERT INTO rate_counters (key, window_start, count) VALUES (?, ?, 1)
ON CONFLICT(key, window_start) DO UPDATE SET count = count + 1
RETURNING count`

	var count int64
	if err := s.db.QueryRowContext(ctx, q, key, windowStart.UnixMilli()).Scan(&count); err != nil {
		return 0, fmt.Errorf("incrementing counter %s: %w", key, err)
	}
	return count, nil
}

func (s *counterStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rate_counters WHERE window_start < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning counters: %w", err)
	}
	return result.RowsAffected()
}
