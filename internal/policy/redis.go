// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package policy

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// RedisConfig describes the shared counter backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisLimiter keeps counters in Redis so every replica shares one quota.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	clock  Clock
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter connects and pings Redis.
func NewRedisLimiter(ctx context.Context, cfg RedisConfig) (*RedisLimiter, error) {
	if cfg.Addr == "" {
		return nil, syerr.New(syerr.CodePolicyInvalidInput, "redis address must not be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, syerr.Wrap(err, syerr.CodePolicyLimiterFailure, "connecting to redis",
			syerr.Field("addr", cfg.Addr))
	}
	return NewRedisLimiterFromClient(client, cfg.Prefix), nil
}

// NewRedisLimiterFromClient wraps an existing client.
func NewRedisLimiterFromClient(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "switchyard:rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, clock: time.Now}
}

// Hit implements Limiter with INCR and PEXPIRE in one MULTI block.
func (r *RedisLimiter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	start := windowStart(r.clock(), window)
	redisKey := r.prefix + key + ":" + strconv.FormatInt(start.UnixMilli(), 10)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		return 0, syerr.Wrap(err, syerr.CodePolicyLimiterFailure, "incrementing redis counter",
			syerr.Field("key", key))
	}
	return incr.Val(), nil
}

// Close closes the client.
func (r *RedisLimiter) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
