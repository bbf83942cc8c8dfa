package purgeable

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/label/internal/cache"
	"github.com/gogpu/label/surface"
)

// ErrClosed is returned by operations on a closed Cache.
var ErrClosed = errors.New("purgeable: cache closed")

// RenderFunc draws an image's content into freshly allocated, cleared
// pixels. A render that observes cancellation should return promptly; the
// result is discarded either way.
type RenderFunc func(ctx context.Context, pixels draw.Image) error

// Config limits the memory a Cache may hold.
type Config struct {
	// MaxImageBytes caps a single image. Larger requests fail with
	// surface.ErrAllocationFailed. Zero means no cap.
	MaxImageBytes int64

	// MaxTotalBytes caps the live images of the cache. Beyond it the least
	// recently locked unlocked images are purged. Zero means no cap.
	MaxTotalBytes int64
}

// DefaultConfig returns limits suitable for a desktop process.
func DefaultConfig() Config {
	return Config{
		MaxImageBytes: 64 << 20,
		MaxTotalBytes: 256 << 20,
	}
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Live          int
	Purged        int
	Bytes         int64
	Hits          uint64
	Misses        uint64
	Creates       uint64
	Regenerations uint64
	Evictions     uint64
}

// Cache owns purgeable images, one per Key.
//
// Cache is safe for concurrent use.
type Cache struct {
	cfg Config

	mu     sync.Mutex
	slots  map[Key]*Image
	lru    cache.List[*Image] // live, unlocked images; front is most recent
	bytes  int64
	stats  Stats
	closed bool
	done   chan struct{}

	regen singleflight.Group
}

// New creates a cache.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:   cfg,
		slots: make(map[Key]*Image),
		done:  make(chan struct{}),
	}
}

// Config returns the cache limits.
func (c *Cache) Config() Config { return c.cfg }

// CreateImage allocates an image, renders it and registers it in slot key,
// replacing and purging any previous occupant.
//
// Allocation failures wrap surface.ErrAllocationFailed. If render fails or
// ctx is cancelled by the time render returns, the image is dropped
// without ever being registered.
func (c *Cache) CreateImage(ctx context.Context, key Key, size image.Point, format gputypes.TextureFormat, render RenderFunc) (*Image, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	pixels, err := surface.Alloc(size, format, c.cfg.MaxImageBytes)
	if err != nil {
		slogger().Warn("purgeable: allocation failed", "key", key, "size", size, "err", err)
		return nil, fmt.Errorf("purgeable: create %v: %w", key, err)
	}
	img := &Image{
		owner:  c,
		key:    key,
		format: format,
		size:   size,
		bytes:  surface.ImageBytes(size, format),
		pixels: pixels,
	}

	if render != nil {
		if err := render(ctx, pixels); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if old := c.slots[key]; old != nil {
		c.unregisterLocked(old)
	}
	img.registered = true
	img.node = c.lru.PushFront(img)
	c.slots[key] = img
	c.bytes += img.bytes
	c.stats.Creates++
	c.enforceBudgetLocked(img)
	return img, nil
}

// Regenerate recreates the image of slot key. Concurrent calls for the
// same slot share one render and one result. The result is always a new
// Image, never the purged one.
//
// The shared render does not inherit any caller's cancellation. Each
// caller returns ctx.Err() as soon as its own ctx is done; the render
// continues for the remaining callers and still registers its image.
func (c *Cache) Regenerate(ctx context.Context, key Key, size image.Point, format gputypes.TextureFormat, render RenderFunc) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shared := context.WithoutCancel(ctx)
	ch := c.regen.DoChan(key.String(), func() (any, error) {
		img, err := c.CreateImage(shared, key, size, format, render)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.stats.Regenerations++
		c.mu.Unlock()
		return img, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Image), nil
	}
}

// Lookup returns the current occupant of slot key.
func (c *Cache) Lookup(key Key) (*Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.slots[key]
	return img, ok
}

// WithLocked runs body with the image's pixels, keeping them from being
// purged until body returns. body must not retain the pixels.
func (c *Cache) WithLocked(img *Image, body func(pixels draw.Image)) LockState {
	if img == nil {
		return LockFailed
	}
	c.mu.Lock()
	if c.closed || img.owner != c {
		c.mu.Unlock()
		return LockFailed
	}
	if img.purged || img.pixels == nil {
		c.stats.Misses++
		c.mu.Unlock()
		return LockedDiscarded
	}
	c.stats.Hits++
	img.locks++
	if img.node != nil {
		c.lru.Remove(img.node)
		img.node = nil
	}
	pixels := img.pixels
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		img.locks--
		if img.locks > 0 {
			return
		}
		if img.purgePending || !img.registered {
			c.purgeLocked(img)
			return
		}
		img.node = c.lru.PushFront(img)
		c.enforceBudgetLocked(nil)
	}()
	body(pixels)
	return LockedLive
}

// Release gives up the image's slot and purges it.
func (c *Cache) Release(img *Image) {
	if img == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if img.owner != c {
		return
	}
	c.unregisterLocked(img)
}

// PurgeAll purges every registered image. Locked images are purged when
// their last lock is released.
func (c *Cache) PurgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, img := range c.slots {
		if !img.purged {
			c.purgeLocked(img)
			n++
		}
	}
	if n > 0 {
		slogger().Debug("purgeable: purged all", "images", n)
	}
}

// Subscribe purges the cache each time signals delivers a value, until
// signals is closed, stop is called or the cache is closed.
func (c *Cache) Subscribe(signals <-chan struct{}) (stop func()) {
	quit := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case _, ok := <-signals:
				if !ok {
					return
				}
				slogger().Info("purgeable: memory pressure")
				c.PurgeAll()
			case <-quit:
				return
			case <-c.done:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(quit) }) }
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Bytes = c.bytes
	for _, img := range c.slots {
		if img.purged {
			s.Purged++
		} else {
			s.Live++
		}
	}
	return s
}

// Close purges every image and stops subscriptions. Close is idempotent.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	for _, img := range c.slots {
		c.unregisterLocked(img)
	}
	return nil
}

func (c *Cache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Cache) unregisterLocked(img *Image) {
	if !img.registered {
		return
	}
	img.registered = false
	if c.slots[img.key] == img {
		delete(c.slots, img.key)
	}
	c.purgeLocked(img)
}

// purgeLocked drops img's pixels now, or when its last lock is released.
func (c *Cache) purgeLocked(img *Image) {
	if img.purged {
		return
	}
	if img.locks > 0 {
		img.purgePending = true
		return
	}
	if img.node != nil {
		c.lru.Remove(img.node)
		img.node = nil
	}
	img.purged = true
	img.pixels = nil
	c.bytes -= img.bytes
}

// enforceBudgetLocked purges least recently used images until the live
// bytes fit MaxTotalBytes. keep is never purged.
func (c *Cache) enforceBudgetLocked(keep *Image) {
	if c.cfg.MaxTotalBytes <= 0 {
		return
	}
	for n := c.lru.Back(); n != nil && c.bytes > c.cfg.MaxTotalBytes; {
		img := n.Key
		n = n.Prev()
		if img == keep {
			continue
		}
		c.purgeLocked(img)
		c.stats.Evictions++
		slogger().Debug("purgeable: evicted", "key", img.key, "bytes", img.bytes)
	}
}
