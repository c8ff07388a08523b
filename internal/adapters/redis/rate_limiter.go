package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRatePrefix namespaces rate limit counters.
const DefaultRatePrefix = "jobmatch:rate:"

// RateLimiter is a fixed-window counter shared by every API replica.
type RateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// RateLimiterOptions configures NewRateLimiter. Limit is the number of requests allowed per Window.
type RateLimiterOptions struct {
	Prefix string
	Limit  int
	Window time.Duration
	Now    func() time.Time
}

// NewRateLimiter validates options and returns a limiter.
func NewRateLimiter(client redis.UniversalClient, opts RateLimiterOptions) (*RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Limit <= 0 {
		return nil, errors.New("rate limit must be positive")
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultRatePrefix
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RateLimiter{
		client: client,
		prefix: opts.Prefix,
		limit:  opts.Limit,
		window: opts.Window,
		now:    opts.Now,
	}, nil
}

// Allow counts one request for key in the current window and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, bucket)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}
