package label

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/label/geom"
	"github.com/gogpu/label/purgeable"
	"github.com/gogpu/label/render"
	"github.com/gogpu/label/sublayer"
	"github.com/gogpu/label/surface"
	"github.com/gogpu/label/textframe"
	"github.com/gogpu/label/tiled"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("label: renderer closed")

// Request is one draw call.
type Request struct {
	Frame *textframe.Frame
	Range textframe.Range

	// Origin is where the frame's origin lands in the viewport, in points.
	Origin geom.Point

	// Params describe the viewport. DisplayScale should match the scale
	// of the surface passed to Render.
	Params ViewportParams

	// Options are read-only for the duration of the call. Cached images
	// are keyed by the Options pointer, not its contents.
	Options *render.Options

	PreferImage bool

	// DrawFunc draws custom content after the text. Its output is cached
	// with the text in image and tiled modes; call Invalidate when it
	// changes.
	DrawFunc render.DrawFunc
}

// fingerprint identifies the pixels of a cached image or tile grid.
type fingerprint struct {
	frame   uint64
	rng     textframe.Range
	origin  geom.Point
	bounds  geom.Rect
	scale   float64
	format  gputypes.TextureFormat
	fill    bool
	bg      color.RGBA
	opts    *render.Options
	version uint64
}

var rendererIDs atomic.Uint64

// Renderer displays one text frame at a time, choosing a render mode per
// call and keeping the bitmaps the chosen mode needs.
//
// Render is meant to be called from one goroutine. All methods are
// nevertheless safe for concurrent use.
type Renderer struct {
	id         uint64
	opts       rendererOptions
	images     *purgeable.Cache
	ownsImages bool

	life context.Context
	stop context.CancelFunc
	quit []func()

	mu       sync.Mutex
	version  uint64 // bumped by Invalidate
	slot     uint64 // image slot generation
	mode     RenderMode
	image    *purgeable.Image
	imageKey purgeable.Key
	imageFP  fingerprint
	layer    *sublayer.Layer
	layerKey purgeable.Key
	layerFP  fingerprint
	engine   *tiled.Engine
	engineFP fingerprint
	closed   bool
}

// NewRenderer creates a renderer.
func NewRenderer(opts ...RendererOption) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Renderer{
		id:     rendererIDs.Add(1),
		opts:   o,
		images: o.images,
		mode:   ModeDirect,
	}
	if r.images == nil {
		r.images = purgeable.New(purgeable.DefaultConfig())
		r.ownsImages = true
	}
	r.life, r.stop = context.WithCancel(context.Background())

	if o.pressure != nil {
		r.quit = append(r.quit, r.images.Subscribe(o.pressure))
	}
	if o.memoryLimit > 0 {
		mon := purgeable.NewMonitor(o.memoryLimit, o.memoryInterval)
		r.quit = append(r.quit, r.images.Subscribe(mon.C()))
		go mon.Run(r.life)
	}
	return r
}

// Images returns the cache holding the renderer's bitmaps.
func (r *Renderer) Images() *purgeable.Cache { return r.images }

// Policy returns the mode selection constants.
func (r *Renderer) Policy() ModePolicy { return r.opts.policy }

// Mode returns the mode of the last completed Render.
func (r *Renderer) Mode() RenderMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Layer returns the sublayer used by ModeImageInSublayer, or nil if that
// mode has not been used.
func (r *Renderer) Layer() *sublayer.Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layer
}

// Engine returns the tiled engine while the renderer is in ModeTiled.
func (r *Renderer) Engine() *tiled.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine
}

// Invalidate discards cached pixels. The next Render redraws everything.
func (r *Renderer) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version++
}

// Render draws req into dst using the mode ComputeRenderInfo selects and
// returns the decision. Vector surfaces are always drawn directly.
//
// Cancellation and allocation failures are absorbed: a cancelled Render
// returns nil having drawn partially or not at all, and an image that
// cannot be allocated falls back to direct drawing.
//
// Render panics if req.Frame is nil or req.Range is invalid.
func (r *Renderer) Render(ctx context.Context, dst surface.Surface, req Request) (RenderInfo, error) {
	if req.Frame == nil {
		panic("label: nil frame")
	}
	req.Range.Validate(req.Frame.Len())

	params := req.Params
	if req.Options != nil {
		params.HighlightPadding = max(params.HighlightPadding, req.Options.HighlightPadding)
	}
	info := ComputeRenderInfo(ctx, req.Frame, req.Origin, params, req.PreferImage, r.opts.policy)
	if info.Discard || ctx.Err() != nil {
		return info, nil
	}
	if dst.IsVector() {
		info.Mode = ModeDirect
		info.ShouldFillBackground = false
		info.Format = gputypes.TextureFormatRGBA8Unorm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return info, ErrClosed
	}
	if info.Mode != r.mode {
		slogger().Debug("label: render mode changed", "from", r.mode, "to", info.Mode, "bounds", info.Bounds)
	}

	var err error
	switch info.Mode {
	case ModeImage:
		err = r.drawImage(ctx, dst, req, info)
	case ModeImageInSublayer:
		err = r.drawSublayer(ctx, dst, req, info)
	case ModeTiled:
		err = r.drawTiled(ctx, dst, req, info)
	default:
		err = r.drawDirect(ctx, dst, req)
	}
	r.releaseExcept(info.Mode)
	r.mode = info.Mode
	if ctx.Err() != nil {
		return info, nil
	}
	return info, err
}

func (r *Renderer) drawDirect(ctx context.Context, dst surface.Surface, req Request) error {
	return render.DrawRange(ctx, render.Params{
		Frame:    req.Frame,
		Range:    req.Range,
		Origin:   req.Origin,
		Target:   dst,
		IsVector: dst.IsVector(),
		Options:  req.Options,
		DrawFunc: req.DrawFunc,
	})
}

// imageOptions returns req.Options with the background fill info asks
// for.
func imageOptions(req Request, info RenderInfo) *render.Options {
	if !info.ShouldFillBackground {
		return req.Options
	}
	var o render.Options
	if req.Options != nil {
		o = *req.Options
	}
	o.FillBackground = true
	o.BackgroundColor = req.Params.BackgroundColor
	return &o
}

func (r *Renderer) fingerprint(req Request, info RenderInfo, scale float64) fingerprint {
	return fingerprint{
		frame:   req.Frame.ID(),
		rng:     req.Range,
		origin:  req.Origin,
		bounds:  info.Bounds,
		scale:   scale,
		format:  info.Format,
		fill:    info.ShouldFillBackground,
		bg:      req.Params.BackgroundColor,
		opts:    req.Options,
		version: r.version,
	}
}

// renderImage renders the frame into a new bitmap covering info.Bounds.
// A discarded image is regenerated in place of key.
func (r *Renderer) renderImage(ctx context.Context, key purgeable.Key, regenerate bool, req Request, info RenderInfo, scale float64) (*purgeable.Image, error) {
	rect := info.DeviceBounds(scale)
	opts := imageOptions(req, info)
	fn := func(ctx context.Context, px draw.Image) error {
		return render.DrawRange(ctx, render.Params{
			Frame:    req.Frame,
			Range:    req.Range,
			Origin:   req.Origin,
			Target:   surface.NewImageSurfaceFrom(px, scale, rect.Min),
			Options:  opts,
			DrawFunc: req.DrawFunc,
		})
	}
	if regenerate {
		return r.images.Regenerate(ctx, key, rect.Size(), info.Format, fn)
	}
	return r.images.CreateImage(ctx, key, rect.Size(), info.Format, fn)
}

// releaseSlot releases whatever occupies key. A regeneration that
// outlived a cancelled Render may have registered an image there.
func (r *Renderer) releaseSlot(key purgeable.Key) {
	if img, ok := r.images.Lookup(key); ok {
		r.images.Release(img)
	}
}

func (r *Renderer) nextKey(mode RenderMode) purgeable.Key {
	r.slot++
	return purgeable.Key{Owner: r.id, Coord: image.Pt(int(mode), 0), Version: r.slot}
}

// fallback reports whether err calls for direct drawing instead.
func fallback(err error, info RenderInfo) bool {
	if !errors.Is(err, surface.ErrAllocationFailed) {
		return false
	}
	slogger().Warn("label: image allocation failed, drawing directly",
		"mode", info.Mode, "bounds", info.Bounds, "err", err)
	return true
}

func (r *Renderer) drawImage(ctx context.Context, dst surface.Surface, req Request, info RenderInfo) error {
	scale := dst.Scale()
	fp := r.fingerprint(req, info, scale)
	at := info.DeviceBounds(scale).Min

	regenerate := false
	for range 2 {
		if r.image == nil || r.imageFP != fp || regenerate {
			if !regenerate {
				r.releaseSlot(r.imageKey)
				r.imageKey = r.nextKey(ModeImage)
			}
			img, err := r.renderImage(ctx, r.imageKey, regenerate, req, info, scale)
			if err != nil {
				if fallback(err, info) {
					return r.drawDirect(ctx, dst, req)
				}
				return err
			}
			if r.image != nil && r.image != img {
				r.images.Release(r.image)
			}
			r.image, r.imageFP = img, fp
		}
		st := r.images.WithLocked(r.image, func(px draw.Image) {
			dst.DrawImage(px, at, nil)
		})
		if st != purgeable.LockedDiscarded {
			return nil
		}
		regenerate = true
	}
	return nil
}

func (r *Renderer) drawSublayer(ctx context.Context, dst surface.Surface, req Request, info RenderInfo) error {
	if r.layer == nil {
		l, err := sublayer.New(r.images, r.opts.provider)
		if err != nil {
			return err
		}
		r.layer = l
		if ai, ok := l.AdapterInfo(); ok {
			slogger().Info("label: sublayer is GPU-hosted", "adapter", ai.Name)
		}
	}
	scale := dst.Scale()
	fp := r.fingerprint(req, info, scale)
	at := info.DeviceBounds(scale).Min

	regenerate := false
	for range 2 {
		if r.layer.Image() == nil || r.layerFP != fp || regenerate {
			if !regenerate {
				r.releaseSlot(r.layerKey)
				r.layerKey = r.nextKey(ModeImageInSublayer)
			}
			img, err := r.renderImage(ctx, r.layerKey, regenerate, req, info, scale)
			if err != nil {
				if fallback(err, info) {
					return r.drawDirect(ctx, dst, req)
				}
				return err
			}
			if err := r.layer.SetImage(img, at); err != nil {
				return err
			}
			r.layerFP = fp
		}
		// GPU-hosted layers are presented by the caller.
		if r.layer.Provider() != nil {
			if r.layer.Image().IsPurged() {
				regenerate = true
				continue
			}
			return nil
		}
		if r.layer.Composite(dst) != purgeable.LockedDiscarded {
			return nil
		}
		regenerate = true
	}
	return nil
}

func (r *Renderer) drawTiled(ctx context.Context, dst surface.Surface, req Request, info RenderInfo) error {
	scale := dst.Scale()
	if r.engine != nil {
		cfg := r.engine.Config()
		if cfg.Scale != scale || cfg.Format != info.Format {
			_ = r.engine.Close()
			r.engine = nil
		}
	}
	if r.engine == nil {
		cfg := r.opts.tiles
		cfg.Scale = scale
		cfg.Format = info.Format
		cfg.Images = r.images
		r.engine = tiled.NewEngine(cfg)
		r.engineFP = fingerprint{}
		slogger().Info("label: tiled engine created", "tile", r.engine.TileSize(), "scale", scale)
	}

	if fp := r.fingerprint(req, info, scale); fp != r.engineFP {
		r.engine.SetContent(info.Bounds, tileDrawFunc(req, imageOptions(req, info)))
		r.engineFP = fp
	}

	visible := req.Params.Viewport()
	if err := r.engine.UpdateVisibleRegion(ctx, visible); err != nil {
		return err
	}
	return r.engine.Composite(ctx, dst, visible)
}

// tileDrawFunc draws the request's text into one tile. Everything it
// needs is captured by value.
func tileDrawFunc(req Request, opts *render.Options) tiled.TileDrawFunc {
	frame, rng, origin, fn := req.Frame, req.Range, req.Origin, req.DrawFunc
	return func(ctx context.Context, dst surface.Surface, _ geom.Rect) error {
		return render.DrawRange(ctx, render.Params{
			Frame:    frame,
			Range:    rng,
			Origin:   origin,
			Target:   dst,
			Options:  opts,
			DrawFunc: fn,
		})
	}
}

// releaseExcept frees the resources of every mode other than keep.
func (r *Renderer) releaseExcept(keep RenderMode) {
	if keep != ModeImage {
		r.images.Release(r.image)
		r.releaseSlot(r.imageKey)
		r.image = nil
	}
	if keep != ModeImageInSublayer {
		if r.layer != nil && r.layer.Image() != nil {
			_ = r.layer.SetImage(nil, image.Point{})
		}
		r.releaseSlot(r.layerKey)
	}
	if keep != ModeTiled && r.engine != nil {
		_ = r.engine.Close()
		r.engine = nil
	}
}

// Close releases every bitmap and stops memory-pressure handling. Close is
// idempotent.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.stop()
	for _, q := range r.quit {
		q()
	}
	r.releaseExcept(-1)
	if r.layer != nil {
		_ = r.layer.Close()
	}
	if r.ownsImages {
		return r.images.Close()
	}
	return nil
}
