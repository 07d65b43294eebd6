package redisstore

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/spaceko/resource-status-service/internal/core/ports"
)

const rateKeyPrefix = "ratelimit:"

// RateLimiter counts attempts per key in fixed windows.
type RateLimiter struct {
	client Client
	limit  int64
	window time.Duration
	cb     *gobreaker.CircuitBreaker
}

var _ ports.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiter(client Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: int64(limit), window: window, cb: newBreaker()}
}

func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := rateKeyPrefix + key
	n, err := guard(r.cb, "count attempt", func() (int64, error) {
		return r.client.Incr(ctx, k).Result()
	})
	if err != nil {
		return false, err
	}
	// EXPIRE NX on every attempt: a window whose first EXPIRE failed gets its
	// TTL on the next call instead of counting forever.
	if _, err := guard(r.cb, "start window", func() (bool, error) {
		return r.client.ExpireNX(ctx, k, r.window).Result()
	}); err != nil {
		return false, err
	}
	return n <= r.limit, nil
}
