// Package hotcache is the one shared bounded-TTL map implementation spec.md
// §9 calls for, replacing the original's ad-hoc per-service dictionaries
// with a single type every subsystem wraps with its own TTL and key
// namespace. It is never a source of truth: a miss always degrades to the
// underlying source (spec.md §4.3).
package hotcache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a process-local, size- and time-bounded key/value store. The
// zero value is not usable; construct with New.
type Cache[V any] struct {
	ttl   time.Duration
	inner *lru.LRU[string, V]
}

// New creates a Cache holding at most size entries, each expiring ttl after
// insertion (time-then-size eviction, per spec.md §4.3).
func New[V any](size int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:   ttl,
		inner: lru.NewLRU[string, V](size, nil, ttl),
	}
}

// Get returns the cached value for key and whether it was present and not
// yet expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.inner.Get(key)
}

// Set stores value under key with the Cache's configured TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.inner.Add(key, value)
}

// Purge removes every entry whose key has the given prefix, supporting the
// administrative invalidation operation of spec.md §4.3 (e.g. evicting a
// single wallet's cached ownership and balances after a Portfolio Gateway
// refresh).
func (c *Cache[V]) Purge(prefix string) int {
	removed := 0
	for _, k := range c.inner.Keys() {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			c.inner.Remove(k)
			removed++
		}
	}
	return removed
}

// Len reports the current number of live entries.
func (c *Cache[V]) Len() int {
	return c.inner.Len()
}
