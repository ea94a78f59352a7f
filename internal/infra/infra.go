// Package infra provides shared infrastructure components used across
// the application: caching and rate limiting.
package infra

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// --- TTL cache ---

// Cache is a thread-safe in-memory cache with a default TTL.
type Cache struct {
	c *cache.Cache
}

// NewCache creates a cache whose entries expire after ttl. Expired entries
// are purged every 2·ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{c: cache.New(ttl, 2*ttl)}
}

// Get retrieves a value from the cache. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	return c.c.Get(key)
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.c.Set(key, value, cache.DefaultExpiration)
}

// SetWithTTL stores a value in the cache with a custom TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.c.Set(key, value, ttl)
}

// Invalidate removes a key from the cache.
func (c *Cache) Invalidate(key string) {
	c.c.Delete(key)
}

// Flush removes all entries from the cache.
func (c *Cache) Flush() {
	c.c.Flush()
}

// Len reports the number of entries, including expired ones not yet purged.
func (c *Cache) Len() int {
	return c.c.ItemCount()
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. Errors are not cached.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// --- Rate limiter ---

// RateLimiter provides token-bucket rate limiting.
type RateLimiter struct {
	l *rate.Limiter
}

// NewRateLimiter creates a rate limiter that allows maxTokens requests
// per refillRate duration, with bursts of up to maxTokens.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	if maxTokens <= 0 {
		return &RateLimiter{l: rate.NewLimiter(rate.Inf, 0)}
	}
	every := refillRate / time.Duration(maxTokens)
	return &RateLimiter{l: rate.NewLimiter(rate.Every(every), maxTokens)}
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.l.Wait(ctx)
}

// Allow takes a token if one is available without blocking.
func (rl *RateLimiter) Allow() bool {
	return rl.l.Allow()
}
