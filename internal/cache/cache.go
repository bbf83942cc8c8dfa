package cache

import (
	"sort"
	"sync"
)

// Cache is a mutex-guarded map with a soft entry limit.
// When the limit is exceeded, the least recently accessed quarter of the
// entries is dropped in one pass.
//
// Cache is safe for concurrent use and must not be copied.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*softEntry[V]
	softLimit int
	tick      int64
}

type softEntry[V any] struct {
	value V
	atime int64
}

// New creates a cache. A softLimit of 0 disables eviction.
func New[K comparable, V any](softLimit int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*softEntry[V]),
		softLimit: softLimit,
	}
}

// GetOrCreate returns the value for key, calling create under the lock
// when it is missing so that concurrent callers never build it twice.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	if e, ok := c.entries[key]; ok {
		e.atime = c.tick
		return e.value
	}
	v := create()
	c.entries[key] = &softEntry[V]{value: v, atime: c.tick}
	if c.softLimit > 0 && len(c.entries) > c.softLimit {
		c.trim()
	}
	return v
}

// trim drops entries until three quarters of the soft limit remain.
// Caller must hold c.mu.
func (c *Cache[K, V]) trim() {
	target := max(c.softLimit*3/4, 1)
	excess := len(c.entries) - target
	if excess <= 0 {
		return
	}

	type aged struct {
		key   K
		atime int64
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e.atime})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].atime < all[j].atime })
	for _, a := range all[:excess] {
		delete(c.entries, a.key)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the per-shard capacity.
	Capacity int
	// Hits is the number of lookups that found a value.
	Hits uint64
	// Misses is the number of lookups that had to create a value.
	Misses uint64
	// Evictions is the number of entries dropped for capacity.
	Evictions uint64
}
