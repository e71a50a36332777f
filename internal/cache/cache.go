// Package cache is a small LRU cache for values that are expensive to build
// and cheap to keep, such as scaled glyph outlines.
package cache

import (
	"slices"
	"sync"
)

// Cache maps keys to values with a soft size limit. When an insert takes it
// past the limit, the least recently used quarter is evicted.
//
// Cache is safe for concurrent use and must not be copied.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	limit   int
	tick    uint64

	hits, misses, evictions uint64
}

type entry[V any] struct {
	value V
	used  uint64
}

// Stats is a point-in-time view of a cache.
type Stats struct {
	Len       int
	Limit     int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// New returns a cache holding about limit entries. A limit <= 0 means
// unbounded.
func New[K comparable, V any](limit int) *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]*entry[V]), limit: limit}
}

// Get returns the value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.touch(e)
		c.hits++
		return e.value, true
	}
	c.misses++
	var zero V
	return zero, false
}

// GetOrCreate returns the value for key, building and storing it with
// create on a miss. create runs under the cache lock so concurrent callers
// never build the same value twice. Errors are returned and not cached.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.touch(e)
		c.hits++
		return e.value, nil
	}
	c.misses++
	v, err := create()
	if err != nil {
		return v, err
	}
	c.insert(key, v)
	return v, nil
}

// Set stores value under key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.touch(e)
		return
	}
	c.insert(key, value)
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry. Counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Stats returns the current counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Len:       len(c.entries),
		Limit:     c.limit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *Cache[K, V]) touch(e *entry[V]) {
	c.tick++
	e.used = c.tick
}

// insert adds a new entry and trims the cache. Caller holds c.mu.
func (c *Cache[K, V]) insert(key K, value V) {
	e := &entry[V]{value: value}
	c.touch(e)
	c.entries[key] = e
	if c.limit > 0 && len(c.entries) > c.limit {
		c.evict()
	}
}

// evict removes the least recently used entries until the cache is at
// three quarters of its limit. Caller holds c.mu.
func (c *Cache[K, V]) evict() {
	keep := max(c.limit*3/4, 1)
	n := len(c.entries) - keep
	if n <= 0 {
		return
	}
	type aged struct {
		key  K
		used uint64
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e.used})
	}
	slices.SortFunc(all, func(a, b aged) int {
		switch {
		case a.used < b.used:
			return -1
		case a.used > b.used:
			return 1
		}
		return 0
	})
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
	c.evictions += uint64(n)
}
