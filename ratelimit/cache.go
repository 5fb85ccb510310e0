package ratelimit

import (
	"sync"
	"time"
)

// maxKeyInputLen bounds the input portion of derived cache keys so oversized
// prompts do not produce unbounded key material.
const maxKeyInputLen = 64

// sweepInterval is the number of Put calls between opportunistic sweeps.
const sweepInterval = 64

// Key derives a cache key from a tool or agent name and its input, truncating
// long inputs.
func Key(name, input string) string {
	if len(input) > maxKeyInputLen {
		input = input[:maxKeyInputLen]
	}
	return name + ":" + input
}

// cacheEntry pairs a stored value with its insertion time.
type cacheEntry struct {
	value    any
	storedAt time.Time
}

// Cache is a TTL-bounded result cache consulted before rate-limit token
// acquisition. Expired entries are evicted lazily on lookup and swept
// opportunistically every few insertions.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	puts    int
	now     func() time.Time
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	// Now supplies the clock, overridable for deterministic tests.
	Now func() time.Time
}

// NewCache creates a cache whose entries expire after ttl. A non-positive
// ttl disables caching: Get always misses and Put is a no-op.
func NewCache(ttl time.Duration, optFns ...func(o *CacheOptions)) *Cache {
	opts := CacheOptions{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     opts.Now,
	}
}

// Get returns a fresh cached value for key. An expired entry is evicted and
// reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}

	return entry.value, true
}

// Put stores value under key with the cache's TTL and opportunistically
// sweeps expired entries every sweepInterval insertions.
func (c *Cache) Put(key string, value any) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{value: value, storedAt: c.now()}

	c.puts++
	if c.puts%sweepInterval == 0 {
		c.sweepLocked()
	}
}

// Sweep removes every expired entry.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
}

// sweepLocked removes expired entries (mu must be held).
func (c *Cache) sweepLocked() {
	cutoff := c.now().Add(-c.ttl)
	for key, entry := range c.entries {
		if entry.storedAt.Before(cutoff) || entry.storedAt.Equal(cutoff) {
			delete(c.entries, key)
		}
	}
}

// Len returns the current number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
