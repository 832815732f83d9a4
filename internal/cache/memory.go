package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is an in-process LRU with a single expiry applied to every entry.
// Counters live outside the LRU so they are never evicted.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
	ttl time.Duration

	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryCache creates a memory cache holding at most maxItems entries.
func NewMemoryCache(maxItems int, ttl time.Duration) (*MemoryCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("cache size must be positive: %d", maxItems)
	}
	return &MemoryCache{
		lru:      expirable.NewLRU[string, []byte](maxItems, nil, ttl),
		ttl:      ttl,
		counters: make(map[string]int64),
	}, nil
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set implements Cache. The ttl argument is ignored; entries expire after the
// TTL the cache was created with.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	c.lru.Add(key, stored)
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Incr implements Cache.
func (c *MemoryCache) Incr(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key] += delta
	return c.counters[key], nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Close implements Cache.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
