package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a process-local Cache. Expired entries are evicted lazily on read.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		store: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.store[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.store, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = entry
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *MemoryCache) Ping(_ context.Context) error { return nil }

func (c *MemoryCache) Close() error { return nil }

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
