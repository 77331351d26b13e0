package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores JSON encoded values of one type under a key prefix.
type Cache[T any] struct {
	redis  *Redis
	prefix string
	ttl    time.Duration
}

// NewCache creates a typed cache. A nil Redis yields a cache that always misses.
func NewCache[T any](r *Redis, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{redis: r, prefix: prefix, ttl: ttl}
}

func (c *Cache[T]) key(key string) string {
	return c.redis.Key(c.prefix, key)
}

func (c *Cache[T]) available() bool {
	return c != nil && c.redis != nil && c.redis.Client != nil
}

// Get returns the cached value or ErrCacheMiss.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, error) {
	if !c.available() {
		return nil, ErrCacheMiss
	}
	raw, err := c.redis.Client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &value, nil
}

// Set stores value with the cache TTL.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) error {
	if !c.available() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.redis.Client.Set(ctx, c.key(key), raw, c.ttl).Err()
}

// Delete removes a key.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	if !c.available() {
		return nil
	}
	return c.redis.Client.Del(ctx, c.key(key)).Err()
}
