package cache

import (
	"strconv"
	"sync"
	"testing"
)

func TestListOrder(t *testing.T) {
	var l List[string]
	a := l.PushFront("a")
	l.PushFront("b")
	c := l.PushFront("c")

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	if got := l.Back().Key; got != "a" {
		t.Errorf("Back() = %q, want a", got)
	}

	l.MoveToFront(a)
	if got := l.Back().Key; got != "b" {
		t.Errorf("after MoveToFront(a), Back() = %q, want b", got)
	}

	l.Remove(c)
	l.Remove(c)
	if l.Len() != 2 {
		t.Errorf("Len() after double Remove = %d, want 2", l.Len())
	}

	key, ok := l.RemoveOldest()
	if !ok || key != "b" {
		t.Errorf("RemoveOldest() = %q, %v, want b, true", key, ok)
	}
	if got := l.Back().Prev(); got != nil {
		t.Errorf("single-element list Back().Prev() = %v, want nil", got)
	}
}

func TestListIgnoresForeignNodes(t *testing.T) {
	var l1, l2 List[int]
	n := l1.PushFront(1)
	l2.PushFront(2)

	l2.Remove(n)
	l2.MoveToFront(n)
	if l1.Len() != 1 || l2.Len() != 1 {
		t.Errorf("lengths = %d, %d, want 1, 1", l1.Len(), l2.Len())
	}
}

func TestCacheSoftLimit(t *testing.T) {
	c := New[int, string](8)
	for i := range 9 {
		c.GetOrCreate(i, func() string { return strconv.Itoa(i) })
	}
	if got := len(c.entries); got != 6 {
		t.Errorf("entries after exceeding soft limit = %d, want 6", got)
	}
	// Most recent entries survive.
	created := false
	if v := c.GetOrCreate(8, func() string { created = true; return "" }); created || v != "8" {
		t.Errorf("GetOrCreate(8) = %q, created %v, want 8, false", v, created)
	}
	c.GetOrCreate(0, func() string { created = true; return "0" })
	if !created {
		t.Error("entry 0 should have been evicted")
	}
}

func TestCacheGetOrCreateOnce(t *testing.T) {
	c := New[string, int](0)
	calls := 0
	for range 3 {
		c.GetOrCreate("k", func() int { calls++; return 1 })
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
	if got := len(c.entries); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
}

func TestShardedCacheEviction(t *testing.T) {
	c := NewSharded[int, int](2)
	for i := range 200 {
		c.GetOrCreate(i, func() int { return i * i })
	}
	if got := c.Len(); got > 2*ShardCount {
		t.Errorf("Len() = %d, exceeds total capacity %d", got, 2*ShardCount)
	}
	st := c.Stats()
	if st.Misses != 200 {
		t.Errorf("Misses = %d, want 200", st.Misses)
	}
	if st.Evictions == 0 {
		t.Error("expected evictions")
	}
}

func TestShardedCacheConcurrent(t *testing.T) {
	c := NewSharded[int, int](64)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				k := (i + g) % 100
				if v := c.GetOrCreate(k, func() int { return k + 1 }); v != k+1 {
					t.Errorf("GetOrCreate(%d) = %d, want %d", k, v, k+1)
				}
			}
		}()
	}
	wg.Wait()

	if st := c.Stats(); st.Hits == 0 || st.Hits+st.Misses != 8*500 {
		t.Errorf("Stats() = %+v, want %d lookups with hits", st, 8*500)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}
