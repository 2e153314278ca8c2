// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package server

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

const turnRetryAfter = "1"

// turnGuard bounds concurrent turns per (role, user). Turns for one user
// share a conversation, so a second concurrent turn would interleave its
// messages with the first.
type turnGuard struct {
	max int

	mu     sync.Mutex
	active map[string]int
}

func newTurnGuard(limit int) *turnGuard {
	if limit <= 0 {
		return nil
	}
	return &turnGuard{max: limit, active: make(map[string]int)}
}

func turnKey(role, userID string) string {
	return role + ":" + userID
}

func (g *turnGuard) acquire(key string) bool {
	if g == nil {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[key] >= g.max {
		return false
	}
	g.active[key]++
	return true
}

func (g *turnGuard) release(key string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.active[key]
	if !ok {
		slog.Error("turn guard: release without acquire", "key_hash", hashKey(key))
		return
	}
	if n <= 1 {
		delete(g.active, key)
		return
	}
	g.active[key] = n - 1
}

// hashKey returns the first 8 hex chars of SHA-256(key) for log privacy.
func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h[:4])
}

// slot acquires a turn slot, returning the release func or a 429.
func (s *Server) slot(role, userID, endpoint string) (func(), error) {
	key := turnKey(role, userID)
	if !s.turns.acquire(key) {
		slog.Warn("turn concurrency limit exceeded", "endpoint", endpoint, "key_hash", hashKey(key))
		err := huma.NewError(http.StatusTooManyRequests, "another turn is already in progress for this user")
		return nil, huma.ErrorWithHeaders(err, http.Header{"Retry-After": []string{turnRetryAfter}})
	}
	return func() { s.turns.release(key) }, nil
}
