package lethe

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value    []byte
	inserted time.Time
}

// MemoryCache is an in-process Cache with lazy expiry: entries older than
// the max age are evicted on the next access.
type MemoryCache struct {
	maxAge time.Duration

	mu      sync.RWMutex
	entries map[string]memoryEntry

	now func() time.Time // overridable for tests
}

// NewMemoryCache creates a memory cache. maxAge of zero caches forever.
func NewMemoryCache(maxAge time.Duration) *MemoryCache {
	return &MemoryCache{
		maxAge:  maxAge,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.maxAge > 0 && c.now().Sub(entry.inserted) > c.maxAge {
		c.mu.Lock()
		// re-check under the write lock; a concurrent Set may have
		// refreshed the entry
		if current, ok := c.entries[key]; ok && c.now().Sub(current.inserted) > c.maxAge {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, inserted: c.now()}
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	return nil
}
