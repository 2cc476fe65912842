package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores serialized panel payloads with TTL-based expiration.
// Get returns the value if present and not expired, Set stores with TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cached value for the key if present and not expired.
// Returns (value, true, nil) on hit, (nil, false, nil) on miss or expiration.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores a value with the specified TTL. The entry expires after TTL
// elapses and is removed on the next Get.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
