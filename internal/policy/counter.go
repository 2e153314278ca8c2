// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package policy

import (
	"context"
	"time"

	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// CounterLimiter keeps counters in the durable store, so quotas survive a
// restart of a single-node deployment.
type CounterLimiter struct {
	counters store.CounterStore
	clock    Clock
}

var _ Limiter = (*CounterLimiter)(nil)

// NewCounterLimiter wraps a store's counter table.
func NewCounterLimiter(counters store.CounterStore, clock Clock) *CounterLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &CounterLimiter{counters: counters, clock: clock}
}

// Hit implements Limiter.
func (c *CounterLimiter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := c.counters.Increment(ctx, key, windowStart(c.clock(), window))
	if err != nil {
		return 0, syerr.Wrap(err, syerr.CodePolicyLimiterFailure, "incrementing rate counter",
			syerr.Field("key", key))
	}
	return n, nil
}

// Prune drops counters from windows that ended before the current one.
func (c *CounterLimiter) Prune(ctx context.Context, window time.Duration) (int64, error) {
	return c.counters.Prune(ctx, windowStart(c.clock(), window))
}
