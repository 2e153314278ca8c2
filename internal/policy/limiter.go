// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package policy

import (
	"context"
	"sync"
	"time"
)

// Limiter counts invocations in fixed windows. Hit increments the counter
// for key in the window containing now and returns the post-increment
// count. The increment and the read are one atomic step, so two concurrent
// callers never observe the same count.
type Limiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Clock returns the current time. Tests inject a controllable one.
type Clock func() time.Time

// windowStart truncates now to the start of its fixed window.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.UTC().Truncate(window)
}

type counter struct {
	start time.Time
	end   time.Time
	count int64
}

// MemoryLimiter is a process-local fixed-window Limiter. A background
// goroutine evicts expired windows; call Close to stop it.
type MemoryLimiter struct {
	clock Clock

	mu       sync.Mutex
	counters map[string]*counter

	stopOnce sync.Once
	done     chan struct{}
}

var _ Limiter = (*MemoryLimiter)(nil)

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides time.Now.
func WithClock(c Clock) MemoryOption {
	return func(m *MemoryLimiter) { m.clock = c }
}

// NewMemoryLimiter creates a limiter and starts its cleanup goroutine.
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		clock:    time.Now,
		counters: make(map[string]*counter),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.cleanup()
	return m
}

// Hit implements Limiter.
func (m *MemoryLimiter) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	now := m.clock()
	start := windowStart(now, window)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok || !c.start.Equal(start) {
		c = &counter{start: start, end: start.Add(window)}
		m.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Len returns the number of live counters.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.EvictExpired()
		}
	}
}

// EvictExpired drops counters whose window has ended.
func (m *MemoryLimiter) EvictExpired() {
	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, c := range m.counters {
		if !now.Before(c.end) {
			delete(m.counters, key)
		}
	}
}
