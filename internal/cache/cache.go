// Package cache stores computed statistics summaries between requests.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skin-lesion-advisor/internal/domain"
)

// Cache is a byte-oriented key/value cache with expiry.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A zero ttl uses the cache default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Incr adds delta to the counter at key and returns the new value.
	// Counters start at zero and never expire.
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	Close() error
}

// New builds the cache backend selected by cfg.Backend.
func New(cfg domain.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(cfg.MaxItems, cfg.TTL)
	case "redis":
		return NewRedisCache(cfg)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// GetJSON decodes the cached value for key into a T. Entries that no longer
// decode are dropped and reported as a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var out T
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		_ = c.Delete(ctx, key)
		return out, false, nil
	}
	return out, true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON[T any](ctx context.Context, c Cache, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.Set(ctx, key, raw, ttl)
}
