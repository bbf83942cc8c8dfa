package tiled

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/label/geom"
	"github.com/gogpu/label/purgeable"
	"github.com/gogpu/label/surface"
)

// ErrClosed is returned by operations on a closed Engine.
var ErrClosed = errors.New("tiled: engine closed")

// TileDrawFunc draws the content within rect, in user space, into dst.
// dst is a raster surface covering exactly one tile. Implementations should
// poll ctx and return early once it is done.
type TileDrawFunc func(ctx context.Context, dst surface.Surface, rect geom.Rect) error

// Config configures an Engine.
type Config struct {
	// TileSize is the tile edge in device pixels.
	TileSize int

	// MinTileSize is the smallest tile edge the engine falls back to after
	// allocation failures.
	MinTileSize int

	// PrerenderMargin grows the visible region, in device pixels, to form
	// the region whose tiles are prerendered in the background.
	PrerenderMargin int

	// Scale is device pixels per point.
	Scale float64

	// Format is the tile pixel format.
	Format gputypes.TextureFormat

	// Workers is the number of prerender goroutines. Zero means GOMAXPROCS.
	Workers int

	// QueueLimit bounds the prerender queue. Zero means four per worker.
	QueueLimit int

	// Images stores tile bitmaps. Nil gives the engine a private cache.
	Images *purgeable.Cache
}

// DefaultConfig returns 1024-pixel tiles with a half-tile prerender margin.
func DefaultConfig() Config {
	return Config{
		TileSize:        1024,
		MinTileSize:     128,
		PrerenderMargin: 512,
		Scale:           1,
		Format:          gputypes.TextureFormatRGBA8Unorm,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.TileSize <= 0 {
		c.TileSize = d.TileSize
	}
	if c.MinTileSize <= 0 {
		c.MinTileSize = min(d.MinTileSize, c.TileSize)
	}
	c.MinTileSize = min(c.MinTileSize, c.TileSize)
	c.PrerenderMargin = max(c.PrerenderMargin, 0)
	if c.Scale <= 0 {
		c.Scale = d.Scale
	}
	if c.Format == gputypes.TextureFormatUndefined {
		c.Format = d.Format
	}
}

// Stats is a snapshot of engine activity.
type Stats struct {
	TileSize int
	Epoch    uint64

	Tiles   int
	Empty   int
	Pending int
	Ready   int
	Stale   int

	Rendered      uint64
	Cancelled     uint64
	Superseded    uint64
	Dropped       uint64
	AllocFailures uint64
}

var engineIDs atomic.Uint64

// Engine renders content as a grid of purgeable tiles.
//
// UpdateVisibleRegion, SetContent, Invalidate and Composite are meant to be
// called from one goroutine; tile rendering happens on the engine's worker
// pool. All methods are nevertheless safe for concurrent use.
type Engine struct {
	cfg        Config
	id         uint64
	images     *purgeable.Cache
	ownsImages bool
	pool       *WorkerPool

	life context.Context
	stop context.CancelFunc

	epoch atomic.Uint64
	tasks atomic.Uint64

	mu       sync.Mutex
	grid     *Grid
	tileSize int
	content  geom.Rect
	draw     TileDrawFunc
	closed   bool

	rendered      atomic.Uint64
	cancelled     atomic.Uint64
	superseded    atomic.Uint64
	allocFailures atomic.Uint64
}

// job is one scheduled tile render.
type job struct {
	tile   *Tile
	id     uint64
	gen    uint64
	size   int
	draw   TileDrawFunc
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates an engine with no content.
func NewEngine(cfg Config) *Engine {
	cfg.normalize()
	e := &Engine{
		cfg:      cfg,
		id:       engineIDs.Add(1),
		images:   cfg.Images,
		pool:     NewWorkerPool(cfg.Workers, cfg.QueueLimit),
		tileSize: cfg.TileSize,
	}
	if e.images == nil {
		e.images = purgeable.New(purgeable.DefaultConfig())
		e.ownsImages = true
	}
	e.life, e.stop = context.WithCancel(context.Background())
	return e
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config { return e.cfg }

// Images returns the cache holding tile bitmaps.
func (e *Engine) Images() *purgeable.Cache { return e.images }

// Epoch returns the current content epoch.
func (e *Engine) Epoch() uint64 { return e.epoch.Load() }

// TileSize returns the current tile edge in device pixels. It shrinks
// after allocation failures.
func (e *Engine) TileSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tileSize
}

// SetContent replaces the content. bounds is the content extent in user
// space; fn renders any part of it. Every tile is discarded.
func (e *Engine) SetContent(bounds geom.Rect, fn TileDrawFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.content = bounds
	e.draw = fn
	gen := e.epoch.Add(1)
	e.rebuildLocked()
	slogger().Debug("tiled: content set", "bounds", bounds, "epoch", gen, "tiles", e.grid.Len())
}

// Invalidate marks every tile out of date and cancels in-flight renders.
// Ready tiles become Stale and are redrawn on the next UpdateVisibleRegion
// or Composite.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.grid == nil {
		return
	}
	gen := e.epoch.Add(1)
	e.grid.ForEach(func(t *Tile) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.state == Pending {
			e.cancelled.Add(1)
		}
		t.stopLocked()
		switch {
		case t.image != nil:
			t.state = Stale
		default:
			t.state = Empty
		}
	})
	slogger().Debug("tiled: invalidated", "epoch", gen)
}

// UpdateVisibleRegion makes rect, in user space, the visible region. Tiles
// under it are rendered before UpdateVisibleRegion returns; tiles within the
// prerender margin are scheduled; all other tiles are released.
//
// Cancelling ctx leaves unfinished visible tiles Empty; it is not an error.
func (e *Engine) UpdateVisibleRegion(ctx context.Context, rect geom.Rect) error {
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return ErrClosed
		}
		size := e.tileSize
		jobs := e.planLocked(ctx, rect)
		e.mu.Unlock()

		if !e.renderAll(jobs) || !e.shrink(size) {
			return nil
		}
	}
}

func (e *Engine) planLocked(ctx context.Context, rect geom.Rect) []job {
	if e.grid == nil || e.draw == nil {
		return nil
	}
	vis := rect.PixelBounds(e.cfg.Scale).Intersect(e.grid.Bounds())
	var act image.Rectangle
	if !vis.Empty() {
		act = vis.Inset(-e.cfg.PrerenderMargin).Intersect(e.grid.Bounds())
	}
	gen := e.epoch.Load()

	var urgent []job
	var nearby []*Tile
	e.grid.ForEach(func(t *Tile) {
		switch {
		case !t.Rect.Overlaps(act):
			e.teardown(t)
		case t.Rect.Overlaps(vis):
			if j, ok := e.begin(ctx, t, gen, true); ok {
				urgent = append(urgent, j)
			}
		default:
			nearby = append(nearby, t)
		}
	})

	// The queue is LIFO: submit the nearest tiles last.
	c := vis.Min.Add(vis.Max).Div(2)
	slices.SortFunc(nearby, func(a, b *Tile) int {
		return distance(b.Rect, c) - distance(a.Rect, c)
	})
	for _, t := range nearby {
		if j, ok := e.begin(e.life, t, gen, false); ok {
			e.submit(j)
		}
	}
	return urgent
}

func distance(r image.Rectangle, p image.Point) int {
	d := r.Min.Add(r.Max).Div(2).Sub(p)
	return d.X*d.X + d.Y*d.Y
}

// begin starts a task for t unless it is Ready for gen or, for non-urgent
// tasks, already Pending. Urgent tasks preempt a pending one and also
// replace a Ready image that was purged.
func (e *Engine) begin(parent context.Context, t *Tile, gen uint64, urgent bool) (job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Ready:
		if t.generation == gen && !(urgent && t.image.IsPurged()) {
			return job{}, false
		}
	case Pending:
		if !urgent {
			return job{}, false
		}
	}
	t.stopLocked()
	if t.state == Ready && t.image.IsPurged() {
		e.images.Release(t.image)
		t.image = nil
	}

	ctx, cancel := context.WithCancel(parent)
	j := job{
		tile:   t,
		id:     e.tasks.Add(1),
		gen:    gen,
		size:   e.tileSize,
		draw:   e.draw,
		ctx:    ctx,
		cancel: cancel,
	}
	t.task, t.cancel = j.id, cancel
	t.state = Pending
	return j, true
}

func (e *Engine) submit(j job) {
	e.pool.Submit(func() {
		if err := e.run(j); errors.Is(err, surface.ErrAllocationFailed) {
			e.shrink(j.size)
		}
	}, func() {
		j.cancel()
		e.abandon(j)
	})
}

// renderAll renders jobs in parallel on the calling goroutine's behalf and
// reports whether any failed to allocate.
func (e *Engine) renderAll(jobs []job) (allocFailed bool) {
	if len(jobs) == 0 {
		return false
	}
	var g errgroup.Group
	g.SetLimit(e.pool.Workers())
	for _, j := range jobs {
		g.Go(func() error {
			if err := e.run(j); errors.Is(err, surface.ErrAllocationFailed) {
				return err
			}
			return nil
		})
	}
	return g.Wait() != nil
}

// run renders one tile and commits or abandons the result.
func (e *Engine) run(j job) error {
	defer j.cancel()
	if j.ctx.Err() != nil {
		e.abandon(j)
		e.cancelled.Add(1)
		return nil
	}

	t := j.tile
	scale := e.cfg.Scale
	key := purgeable.Key{Owner: e.id, Coord: t.Coord, Version: j.id}
	img, err := e.images.CreateImage(j.ctx, key, t.Rect.Size(), e.cfg.Format, func(ctx context.Context, px draw.Image) error {
		dst := surface.NewImageSurfaceFrom(px, scale, t.Rect.Min)
		return j.draw(ctx, dst, geom.FromImageRect(t.Rect).Scale(1/scale))
	})
	switch {
	case err == nil:
		e.commit(j, img)
		return nil
	case errors.Is(err, surface.ErrAllocationFailed):
		e.abandon(j)
		e.allocFailures.Add(1)
		return err
	case j.ctx.Err() != nil:
		e.abandon(j)
		e.cancelled.Add(1)
		return nil
	default:
		e.abandon(j)
		slogger().Warn("tiled: tile render failed", "coord", t.Coord, "err", err)
		return err
	}
}

// commit installs img if j is still the tile's task and its epoch is
// current; otherwise img is released.
func (e *Engine) commit(j job, img *purgeable.Image) {
	t := j.tile
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.task != j.id || e.epoch.Load() != j.gen {
		e.images.Release(img)
		e.superseded.Add(1)
		return
	}
	old := t.image
	t.image = img
	t.state = Ready
	t.generation = j.gen
	t.task, t.cancel = 0, nil
	if old != nil {
		e.images.Release(old)
	}
	e.rendered.Add(1)
}

// abandon returns the tile to Empty if j is still its task.
func (e *Engine) abandon(j job) {
	t := j.tile
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.task != j.id {
		return
	}
	t.task, t.cancel = 0, nil
	if t.image != nil {
		e.images.Release(t.image)
		t.image = nil
	}
	t.state = Empty
}

// teardown cancels t's task and releases its image.
func (e *Engine) teardown(t *Tile) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Pending {
		e.cancelled.Add(1)
	}
	t.stopLocked()
	if t.image != nil {
		e.images.Release(t.image)
		t.image = nil
	}
	t.state = Empty
}

// shrink halves the tile size after an allocation failure at size from.
// It reports whether rendering should be retried.
func (e *Engine) shrink(from int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if e.tileSize != from {
		return true
	}
	next := from / 2
	if next < e.cfg.MinTileSize {
		slogger().Warn("tiled: tile allocation failed at minimum size", "size", from)
		return false
	}
	slogger().Warn("tiled: tile allocation failed, shrinking tiles", "from", from, "to", next)
	e.tileSize = next
	e.rebuildLocked()
	return true
}

// rebuildLocked discards every tile and lays out a new grid.
func (e *Engine) rebuildLocked() {
	if e.grid != nil {
		e.grid.ForEach(e.teardown)
	}
	e.grid = NewGrid(e.content.PixelBounds(e.cfg.Scale), e.tileSize)
}

// Composite draws the Ready tiles intersecting rect, in user space, onto
// dst, whose scale must match the engine's. Tiles that are not Ready or
// whose image was purged are rendered synchronously first.
func (e *Engine) Composite(ctx context.Context, dst surface.Surface, rect geom.Rect) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.grid == nil || e.draw == nil {
		e.mu.Unlock()
		return nil
	}
	tiles := e.grid.TilesIn(rect.PixelBounds(e.cfg.Scale))
	e.mu.Unlock()

	var missing []*Tile
	for _, t := range tiles {
		if !e.drawTile(dst, t) {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	e.mu.Lock()
	gen := e.epoch.Load()
	size := e.tileSize
	var jobs []job
	for _, t := range missing {
		if e.grid.TileAt(t.Coord) != t {
			continue
		}
		if j, ok := e.begin(ctx, t, gen, true); ok {
			jobs = append(jobs, j)
		}
	}
	e.mu.Unlock()

	if e.renderAll(jobs) && e.shrink(size) {
		return e.Composite(ctx, dst, rect)
	}
	for _, t := range missing {
		e.drawTile(dst, t)
	}
	return nil
}

// drawTile composites t if it is Ready and its image is live.
func (e *Engine) drawTile(dst surface.Surface, t *Tile) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Ready || t.generation != e.epoch.Load() {
		return false
	}
	st := e.images.WithLocked(t.image, func(px draw.Image) {
		dst.DrawImage(px, t.Rect.Min, nil)
	})
	switch st {
	case purgeable.LockedLive:
		return true
	case purgeable.LockedDiscarded:
		e.images.Release(t.image)
		t.image = nil
		t.state = Empty
	}
	return false
}

// TileState returns the state of the tile at c. Coordinates outside the
// grid are Empty.
func (e *Engine) TileState(c image.Point) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grid == nil {
		return Empty
	}
	t := e.grid.TileAt(c)
	if t == nil {
		return Empty
	}
	return t.info().State
}

// Tiles returns a snapshot of every tile in row-major order.
func (e *Engine) Tiles() []TileInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grid == nil {
		return nil
	}
	out := make([]TileInfo, 0, e.grid.Len())
	e.grid.ForEach(func(t *Tile) { out = append(out, t.info()) })
	return out
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Epoch:         e.epoch.Load(),
		Rendered:      e.rendered.Load(),
		Cancelled:     e.cancelled.Load(),
		Superseded:    e.superseded.Load(),
		Dropped:       e.pool.Dropped(),
		AllocFailures: e.allocFailures.Load(),
	}
	for _, ti := range e.Tiles() {
		s.Tiles++
		switch ti.State {
		case Empty:
			s.Empty++
		case Pending:
			s.Pending++
		case Ready:
			s.Ready++
		case Stale:
			s.Stale++
		}
	}
	s.TileSize = e.TileSize()
	return s
}

// Close cancels all work and releases every tile. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.stop()
	if e.grid != nil {
		e.grid.ForEach(e.teardown)
	}
	e.mu.Unlock()

	e.pool.Close()
	if e.ownsImages {
		return e.images.Close()
	}
	return nil
}
