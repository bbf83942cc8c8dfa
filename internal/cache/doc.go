// Package cache provides the generic caching primitives shared by the
// renderer packages.
//
// # List[K]
//
// An intrusive doubly-linked recency list. It is not synchronized; owners
// embed it next to their own mutex (purgeable.Cache uses it to pick purge
// victims under its table lock).
//
// # Cache[K, V]
//
// A mutex-guarded map with a soft limit. When the limit is exceeded the
// least recently accessed quarter is dropped. Used for per-font glyph
// outlines.
//
// # ShardedCache[K, V]
//
// A 16-way sharded LRU for keys hit from many goroutines at once, such as
// the glyph mask cache read by every tile worker.
package cache
