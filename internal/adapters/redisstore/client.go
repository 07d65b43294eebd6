// Package redisstore keeps sessions, the audit log and rate limit counters
// in Redis so several API replicas share them.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/spaceko/resource-status-service/internal/config"
	"github.com/spaceko/resource-status-service/internal/core/domain"
)

// Client is the subset of *redis.Client the stores use.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetXX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

var _ Client = (*redis.Client)(nil)

// guard runs fn behind the breaker. redis.Nil is a lookup miss, not a
// failure, so it is returned as domain.ErrNotFound without tripping the
// breaker.
func guard[T any](cb *gobreaker.CircuitBreaker, op string, fn func() (T, error)) (T, error) {
	var zero T
	missed := false
	res, err := cb.Execute(func() (interface{}, error) {
		v, err := fn()
		if errors.Is(err, redis.Nil) {
			missed = true
			return zero, nil
		}
		return v, err
	})
	if missed {
		return zero, domain.ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
	}
	return res.(T), nil
}

func newBreaker() *gobreaker.CircuitBreaker {
	return config.NewCircuitBreaker(config.BreakerRedis)
}
