// Package ratelimit provides a Redis backed fixed-window rate limiter.
// This is part of the platform layer and contains no business logic.
package ratelimit

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key inside a fixed window. A nil Limiter, or one
// without a client, allows everything so local setups work without Redis.
type Limiter struct {
	client redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
}

// New creates a limiter allowing limit hits per window for each key.
func New(client redis.Cmdable, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true, nil
	}

	fullKey := l.prefix + ":" + key
	count, err := l.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate limit key: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, fullKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire rate limit key: %w", err)
		}
	}

	return count <= l.limit, nil
}

// NewRedisClient builds a client from a redis:// or rediss:// URL.
// Returns nil when url is empty.
func NewRedisClient(url string, tlsInsecure bool) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.TLSConfig != nil && tlsInsecure {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for managed Redis with self-signed certs
	}
	return redis.NewClient(opts), nil
}
