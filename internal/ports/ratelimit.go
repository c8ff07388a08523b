package ports

import "context"

// RateLimiter admits or rejects one request for a caller key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
