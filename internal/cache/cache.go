package cache

import (
	"sync"
	"time"
)

// entry stores one cached value with the instant it was written.
type entry[T any] struct {
	value    T
	storedAt time.Time
}

// Cache is an in-memory TTL cache. A single TTL applies to every entry.
// Expired entries are evicted lazily on Get; there is no capacity bound
// because the key space is a handful of well-known resource names.
type Cache[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]entry[T]
}

func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry[T]),
	}
}

// Get returns the cached value for key if it is younger than the TTL.
// An expired entry is removed and reported as absent.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; Set may have refreshed the entry.
		if cur, ok := c.items[key]; ok && c.now().Sub(cur.storedAt) > c.ttl {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the current timestamp, overwriting any
// prior entry.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	c.items[key] = entry[T]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
