package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// SimpleCache is a TTL map with lazy expiry, good enough for the
// read-path decorators. Staleness is bounded by the version check on
// the next write, so no active eviction is needed.
type SimpleCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

func NewSimpleCache(ttl time.Duration) *SimpleCache {
	return &SimpleCache{
		ttl: ttl,
		m:   make(map[string]entry),
	}
}

func (c *SimpleCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		c.Release(key)
		return nil, false
	}

	return e.value, true
}

func (c *SimpleCache) Set(key string, value any) {
	c.mu.Lock()
	c.m[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *SimpleCache) Release(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}
