// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/switchyard-dev/switchyard/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", func(cfg *store.StorageConfig) (store.Store, error) {
		dir := cfg.DataDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
		}
		return New(filepath.Join(dir, "switchyard.db"))
	})
}

// Compile-time interface checks.
var (
	_ store.Store             = (*Store)(nil)
	_ store.ConversationStore = (*conversationStore)(nil)
	_ store.LedgerStore       = (*ledgerStore)(nil)
	_ store.AuditStore        = (*auditStore)(nil)
	_ store.CounterStore      = (*counterStore)(nil)
)

// Store implements store.Store backed by a single SQLite database.
type Store struct {
	db            *sql.DB
	conversations *conversationStore
	ledger        *ledgerStore
	audit         *auditStore
	counters      *counterStore
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}

	return &Store{
		db:            db,
		conversations: &conversationStore{db: db},
		ledger:        &ledgerStore{db: db},
		audit:         &auditStore{db: db},
		counters:      &counterStore{db: db},
	}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	role       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(role, user_id);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	tool_call_id    TEXT NOT NULL DEFAULT '',
	tool_name       TEXT NOT NULL DEFAULT '',
	tool_calls      TEXT NOT NULL DEFAULT '[]',
	created_at      TEXT NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL DEFAULT '',
	user_id         TEXT NOT NULL DEFAULT '',
	request_text    TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	outcome         TEXT NOT NULL DEFAULT '',
	latency_ms      INTEGER NOT NULL DEFAULT 0,
	rounds          INTEGER NOT NULL DEFAULT 0,
	input_tokens    INTEGER NOT NULL DEFAULT 0,
	output_tokens   INTEGER NOT NULL DEFAULT 0,
	planning        TEXT NOT NULL DEFAULT '{}',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	completed_at    TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_user    ON runs(user_id);

CREATE TABLE IF NOT EXISTS steps (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	seq            INTEGER NOT NULL,
	domain         TEXT NOT NULL DEFAULT '',
	action         TEXT NOT NULL DEFAULT '',
	tool_name      TEXT NOT NULL DEFAULT '',
	risk_tier      TEXT NOT NULL DEFAULT '',
	params         TEXT NOT NULL DEFAULT '{}',
	result_summary TEXT NOT NULL DEFAULT '',
	outcome        TEXT NOT NULL,
	latency_ms     INTEGER NOT NULL DEFAULT 0,
	gate_id        TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	UNIQUE (run_id, seq),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS gates (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	step_id       TEXT NOT NULL DEFAULT '',
	user_id       TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT '',
	scope         TEXT NOT NULL DEFAULT '{}',
	tool_name     TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	risk_tier     TEXT NOT NULL DEFAULT '',
	params        TEXT NOT NULL DEFAULT '{}',
	decision      TEXT NOT NULL DEFAULT 'pending',
	decided_by    TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	decided_at    TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_gates_run      ON gates(run_id);
CREATE INDEX IF NOT EXISTS idx_gates_decision ON gates(decision, created_at);

CREATE TABLE IF NOT EXISTS continuations (
	gate_id    TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (gate_id) REFERENCES gates(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS audit_log (
	id        TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	action    TEXT NOT NULL DEFAULT '',
	actor     TEXT NOT NULL DEFAULT '',
	run_id    TEXT NOT NULL DEFAULT '',
	domain    TEXT NOT NULL DEFAULT '',
	details   TEXT NOT NULL DEFAULT '{}',
	result    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_action    ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_log_run       ON audit_log(run_id);

CREATE TABLE IF NOT EXISTS rate_counters (
	key          TEXT NOT NULL,
	window_start INTEGER NOT NULL,
	count        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (key, window_start)
);
`
	_, err := db.Exec(ddl)
	return err
}

func (s *Store) Conversations() store.ConversationStore { return s.conversations }
func (s *Store) Ledger() store.LedgerStore              { return s.ledger }
func (s *Store) Audit() store.AuditStore                { return s.audit }
func (s *Store) Counters() store.CounterStore           { return s.counters }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isForeignKeyViolation(err error) bool {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	return sqErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
