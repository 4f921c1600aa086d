package cache

import (
	"sync"
	"time"
)

type entry struct {
	value    any
	cachedAt time.Time
}

// Memory is a TTL-based in-memory cache for upstream responses.
// Expiry is checked on read; expired entries are dropped lazily.
// Safe for concurrent use: one instance is shared by every client in
// a command invocation, including concurrent fan-out fetches.
type Memory struct {
	mu    sync.Mutex
	store map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// New creates a memory cache with the given TTL. A zero or negative
// TTL means every read misses.
func New(ttl time.Duration) *Memory {
	return &Memory{
		store: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a cached value if it exists and has not expired.
func (c *Memory) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.cachedAt) > c.ttl {
		delete(c.store, key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the current timestamp.
func (c *Memory) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = entry{value: value, cachedAt: c.now()}
}

// Len reports the number of entries, expired or not.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}
