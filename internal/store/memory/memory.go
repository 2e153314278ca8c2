// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package memory provides an in-process store backend. It keeps nothing
// across restarts and is intended for tests and single-node development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/switchyard-dev/switchyard/internal/store"
)

func init() {
	store.RegisterBackend("memory", func(*store.StorageConfig) (store.Store, error) {
		return New(), nil
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

// Store implements store.Store with maps guarded by mutexes.
type Store struct {
	conversations *conversationStore
	ledger        *ledgerStore
	audit         *auditStore
	counters      *counterStore
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		conversations: &conversationStore{
			byID:     map[string]*store.Conversation{},
			byOwner:  map[string]string{},
			messages: map[string][]*store.Message{},
		},
		ledger: &ledgerStore{
			runs:          map[string]*store.Run{},
			steps:         map[string][]*store.Step{},
			gates:         map[string]*store.Gate{},
			continuations: map[string][]byte{},
		},
		audit:    &auditStore{},
		counters: &counterStore{counts: map[counterKey]int64{}},
	}
}

func (s *Store) Conversations() store.ConversationStore { return s.conversations }
func (s *Store) Ledger() store.LedgerStore              { return s.ledger }
func (s *Store) Audit() store.AuditStore                { return s.audit }
func (s *Store) Counters() store.CounterStore           { return s.counters }
func (s *Store) Close() error                           { return nil }

// ---------- conversations ----------

type conversationStore struct {
	mu       sync.RWMutex
	byID     map[string]*store.Conversation
	byOwner  map[string]string
	messages map[string][]*store.Message
}

func ownerKey(role, userID string) string { return role + "\x00" + userID }

func (s *conversationStore) CreateConversation(_ context.Context, conv *store.Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[conv.ID]; ok {
		return store.Conflict("conversation", conv.ID, "already exists")
	}
	key := ownerKey(conv.Role, conv.UserID)
	if _, ok := s.byOwner[key]; ok {
		return store.Conflict("conversation", conv.ID, "role and user already have a conversation")
	}
	s.byID[conv.ID] = conv.Clone()
	s.byOwner[key] = conv.ID
	return nil
}

func (s *conversationStore) GetConversation(_ context.Context, id string) (*store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, store.NotFound("conversation", id)
	}
	return conv.Clone(), nil
}

func (s *conversationStore) FindConversation(_ context.Context, role, userID string) (*store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOwner[ownerKey(role, userID)]
	if !ok {
		return nil, store.NotFound("conversation", role+"/"+userID)
	}
	return s.byID[id].Clone(), nil
}

func (s *conversationStore) AppendMessage(_ context.Context, conversationID string, msg *store.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[conversationID]
	if !ok {
		return store.NotFound("conversation", conversationID)
	}
	cp := msg.Clone()
	cp.ConversationID = conversationID
	s.messages[conversationID] = append(s.messages[conversationID], cp)
	conv.UpdatedAt = msg.CreatedAt
	return nil
}

func (s *conversationStore) GetActiveWindow(_ context.Context, conversationID string, limit int) ([]*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[conversationID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	out := make([]*store.Message, 0, len(all)-start)
	for _, m := range all[start:] {
		out = append(out, m.Clone())
	}
	return out, nil
}

// ---------- ledger ----------

type ledgerStore struct {
	mu            sync.RWMutex
	runs          map[string]*store.Run
	steps         map[string][]*store.Step
	gates         map[string]*store.Gate
	gateOrder     []string
	continuations map[string][]byte
}

func (s *ledgerStore) CreateRun(_ context.Context, run *store.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return store.Conflict("run", run.ID, "already exists")
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *ledgerStore) GetRun(_ context.Context, id string) (*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, store.NotFound("run", id)
	}
	return run.Clone(), nil
}

func (s *ledgerStore) UpdateRun(_ context.Context, run *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return store.NotFound("run", run.ID)
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *ledgerStore) ListRuns(_ context.Context, filter store.RunFilter) ([]*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Run
	for _, run := range s.runs {
		if filter.UserID != "" && run.UserID != filter.UserID {
			continue
		}
		if filter.ConversationID != "" && run.ConversationID != filter.ConversationID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *ledgerStore) AppendStep(_ context.Context, step *store.Step) error {
	if err := step.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[step.RunID]; !ok {
		return store.NotFound("run", step.RunID)
	}
	step.Seq = len(s.steps[step.RunID]) + 1
	s.steps[step.RunID] = append(s.steps[step.RunID], step.Clone())
	return nil
}

func (s *ledgerStore) ListSteps(_ context.Context, runID string) ([]*store.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := s.steps[runID]
	out := make([]*store.Step, 0, len(steps))
	for _, st := range steps {
		out = append(out, st.Clone())
	}
	return out, nil
}

func (s *ledgerStore) CreateGate(_ context.Context, gate *store.Gate) error {
	if err := gate.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[gate.RunID]; !ok {
		return store.NotFound("run", gate.RunID)
	}
	if _, ok := s.gates[gate.ID]; ok {
		return store.Conflict("gate", gate.ID, "already exists")
	}
	s.gates[gate.ID] = gate.Clone()
	s.gateOrder = append(s.gateOrder, gate.ID)
	return nil
}

func (s *ledgerStore) GetGate(_ context.Context, id string) (*store.Gate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.gates[id]
	if !ok {
		return nil, store.NotFound("gate", id)
	}
	return g.Clone(), nil
}

func (s *ledgerStore) ListGates(_ context.Context, filter store.GateFilter) ([]*store.Gate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Gate
	for _, id := range s.gateOrder {
		g := s.gates[id]
		if filter.RunID != "" && g.RunID != filter.RunID {
			continue
		}
		if filter.UserID != "" && g.UserID != filter.UserID {
			continue
		}
		if filter.Decision != "" && g.Decision != filter.Decision {
			continue
		}
		out = append(out, g.Clone())
	}
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *ledgerStore) ResolveGate(_ context.Context, id string, decision store.GateDecision, decidedBy string, at time.Time) (*store.Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gates[id]
	if !ok {
		return nil, store.NotFound("gate", id)
	}
	if !g.Pending() {
		return nil, store.Conflict("gate", id, "already "+string(g.Decision))
	}
	g.Decision = decision
	g.DecidedBy = decidedBy
	g.DecidedAt = at
	return g.Clone(), nil
}

func (s *ledgerStore) SaveContinuation(_ context.Context, gateID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.gates[gateID]; !ok {
		return store.NotFound("gate", gateID)
	}
	s.continuations[gateID] = append([]byte(nil), data...)
	return nil
}

func (s *ledgerStore) LoadContinuation(_ context.Context, gateID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.continuations[gateID]
	if !ok {
		return nil, store.NotFound("continuation", gateID)
	}
	return append([]byte(nil), data...), nil
}

// ---------- audit ----------

type auditStore struct {
	mu      sync.RWMutex
	entries []*store.AuditEntry
}

func (s *auditStore) Append(_ context.Context, entry *store.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry.Clone())
	return nil
}

func (s *auditStore) Query(_ context.Context, filter store.AuditFilter) ([]*store.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.AuditEntry
	for _, e := range s.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Actor != "" && e.Actor != filter.Actor {
			continue
		}
		if filter.RunID != "" && e.RunID != filter.RunID {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.Timestamp.Before(filter.To) {
			continue
		}
		out = append(out, e.Clone())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	return page(out, filter.Offset, limit), nil
}

// ---------- counters ----------

type counterKey struct {
	key         string
	windowStart int64
}

type counterStore struct {
	mu     sync.Mutex
	counts map[counterKey]int64
}

func (s *counterStore) Increment(_ context.Context, key string, windowStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := counterKey{key: key, windowStart: windowStart.UnixNano()}
	s.counts[k]++
	return s.counts[k], nil
}

func (s *counterStore) Prune(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := before.UnixNano()
	var n int64
	for k := range s.counts {
		if k.windowStart < cutoff {
			delete(s.counts, k)
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
