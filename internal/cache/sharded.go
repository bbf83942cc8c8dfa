package cache

import (
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const (
	// ShardCount is the number of independently locked shards.
	// Must be a power of two.
	ShardCount = 16

	// DefaultShardCapacity is the per-shard entry limit used when the
	// caller passes a non-positive capacity.
	DefaultShardCapacity = 256

	shardMask = ShardCount - 1
)

// ShardedCache is an LRU cache split into ShardCount shards, each with its
// own mutex, so that concurrent tile workers rarely contend.
//
// ShardedCache is safe for concurrent use and must not be copied.
type ShardedCache[K comparable, V any] struct {
	shards   [ShardCount]shard[K, V]
	seed     maphash.Seed
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*shardEntry[K, V]
	lru     List[K]
}

type shardEntry[K comparable, V any] struct {
	value V
	node  *Node[K]
}

// NewSharded creates a sharded cache holding up to capacity entries per
// shard.
func NewSharded[K comparable, V any](capacity int) *ShardedCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultShardCapacity
	}
	c := &ShardedCache[K, V]{
		seed:     maphash.MakeSeed(),
		capacity: capacity,
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[K]*shardEntry[K, V])
	}
	return c
}

func (c *ShardedCache[K, V]) shardFor(key K) *shard[K, V] {
	return &c.shards[maphash.Comparable(c.seed, key)&shardMask]
}

// GetOrCreate returns the cached value for key, building it with create
// under the shard lock when missing. Keep create short: it blocks the
// whole shard.
func (c *ShardedCache[K, V]) GetOrCreate(key K, create func() V) V {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.lru.MoveToFront(e.node)
		c.hits.Add(1)
		return e.value
	}
	c.misses.Add(1)

	v := create()
	for s.lru.Len() >= c.capacity {
		oldest, ok := s.lru.RemoveOldest()
		if !ok {
			break
		}
		delete(s.entries, oldest)
		c.evictions.Add(1)
	}
	s.entries[key] = &shardEntry[K, V]{value: v, node: s.lru.PushFront(key)}
	return v
}

// Clear drops every entry in every shard.
func (c *ShardedCache[K, V]) Clear() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.entries = make(map[K]*shardEntry[K, V])
		s.lru.Clear()
		s.mu.Unlock()
	}
}

// Len returns the number of entries across all shards.
func (c *ShardedCache[K, V]) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Stats returns a snapshot of the counters.
func (c *ShardedCache[K, V]) Stats() Stats {
	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
