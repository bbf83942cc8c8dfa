package recording

import (
	"errors"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/label/geom"
	"github.com/gogpu/label/surface"
)

// ErrNilSurface is returned by Playback when there is no target.
var ErrNilSurface = errors.New("recording: nil playback surface")

// Recorder captures drawing operations as commands. It implements
// surface.Surface as a vector surface of the given size in points.
// Use FinishRecording to obtain an immutable Recording.
//
// The Recorder is not safe for concurrent use.
type Recorder struct {
	width, height int
	commands      []Command
	resources     *ResourcePool
	bounds        geom.Rect
	closed        bool
}

// NewRecorder creates a new Recorder for the given dimensions.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{
		width:     width,
		height:    height,
		commands:  make([]Command, 0, 256),
		resources: NewResourcePool(),
	}
}

// FinishRecording returns an immutable Recording containing all recorded commands.
// After calling FinishRecording, the Recorder should not be used again.
func (r *Recorder) FinishRecording() *Recording {
	return &Recording{
		width:     r.width,
		height:    r.height,
		commands:  r.commands,
		resources: r.resources,
		bounds:    r.bounds,
	}
}

// Width returns the width of the recording canvas.
func (r *Recorder) Width() int { return r.width }

// Height returns the height of the recording canvas.
func (r *Recorder) Height() int { return r.height }

// Scale returns 1: recordings are resolution independent.
func (r *Recorder) Scale() float64 { return 1 }

// Origin returns the zero point.
func (r *Recorder) Origin() image.Point { return image.Point{} }

// IsVector returns true.
func (r *Recorder) IsVector() bool { return true }

// Clear records a full-surface fill and discards the accumulated bounds.
func (r *Recorder) Clear(c color.Color) {
	if r.closed {
		return
	}
	r.commands = append(r.commands, ClearCommand{Color: toRGBA(c)})
	r.bounds = geom.Rect{}
	if toRGBA(c).A != 0 {
		r.bounds = geom.R(0, 0, float64(r.width), float64(r.height))
	}
}

// FillRect records a rectangle fill.
func (r *Recorder) FillRect(rect geom.Rect, c color.Color) {
	if r.closed || rect.Empty() {
		return
	}
	r.commands = append(r.commands, FillRectCommand{Rect: rect, Color: toRGBA(c)})
	r.bounds = r.bounds.Union(rect)
}

// FillPath records a path fill. The path is copied.
func (r *Recorder) FillPath(p *surface.Path, c color.Color) {
	if r.closed || p == nil || p.IsEmpty() {
		return
	}
	ref := r.resources.AddPath(p)
	r.commands = append(r.commands, FillPathCommand{Path: ref, Color: toRGBA(c)})
	r.bounds = r.bounds.Union(p.Bounds())
}

// DrawMask records a mask composite. The mask is copied.
func (r *Recorder) DrawMask(mask *image.Alpha, at image.Point, c color.Color) {
	if r.closed || mask == nil {
		return
	}
	ref := r.resources.AddMask(mask)
	r.commands = append(r.commands, DrawMaskCommand{Mask: ref, At: at, Color: toRGBA(c)})
	r.bounds = r.bounds.Union(geom.FromImageRect(mask.Rect.Add(at)))
}

// DrawImage records an image draw. The image is copied.
func (r *Recorder) DrawImage(img image.Image, at image.Point, opts *surface.DrawImageOptions) {
	if r.closed || img == nil {
		return
	}
	src := img.Bounds()
	alpha := 1.0
	if opts != nil {
		alpha = opts.Alpha
		if opts.SrcRect != nil {
			src = opts.SrcRect.Intersect(src)
		}
	}
	ref := r.resources.AddImage(subImage(img, src))
	r.commands = append(r.commands, DrawImageCommand{Image: ref, At: at, Alpha: alpha})
	r.bounds = r.bounds.Union(geom.FromImageRect(image.Rectangle{Min: at, Max: at.Add(src.Size())}))
}

// Flush is a no-op.
func (r *Recorder) Flush() error { return nil }

// Close stops recording. Close is idempotent.
func (r *Recorder) Close() error {
	r.closed = true
	return nil
}

var _ surface.Surface = (*Recorder)(nil)

// Recording is an immutable container for recorded drawing commands.
type Recording struct {
	width, height int
	commands      []Command
	resources     *ResourcePool
	bounds        geom.Rect
}

// Width returns the width of the recording canvas.
func (r *Recording) Width() int { return r.width }

// Height returns the height of the recording canvas.
func (r *Recording) Height() int { return r.height }

// Commands returns the recorded commands.
func (r *Recording) Commands() []Command { return r.commands }

// Resources returns the resource pool.
func (r *Recording) Resources() *ResourcePool { return r.resources }

// Bounds returns the user-space area touched by the recorded commands.
func (r *Recording) Bounds() geom.Rect { return r.bounds }

// Playback replays the recording onto dst. Fills are replayed in user
// space; masks and images, which were recorded at scale 1, are resampled
// when dst has a different scale.
func (r *Recording) Playback(dst surface.Surface) error {
	if dst == nil {
		return ErrNilSurface
	}
	scale := dst.Scale()
	for _, cmd := range r.commands {
		switch c := cmd.(type) {
		case ClearCommand:
			dst.Clear(c.Color)
		case FillRectCommand:
			dst.FillRect(c.Rect, c.Color)
		case FillPathCommand:
			if p := r.resources.GetPath(c.Path); p != nil {
				dst.FillPath(p, c.Color)
			}
		case DrawMaskCommand:
			mask := r.resources.GetMask(c.Mask)
			if mask == nil {
				continue
			}
			if scale == 1 {
				dst.DrawMask(mask, c.At, c.Color)
				continue
			}
			dst.DrawMask(scaleMask(mask, scale), scalePoint(c.At, scale), c.Color)
		case DrawImageCommand:
			img := r.resources.GetImage(c.Image)
			if img == nil {
				continue
			}
			at := c.At
			if scale != 1 {
				img = scaleImage(img, scale)
				at = scalePoint(at, scale)
			}
			dst.DrawImage(img, at, &surface.DrawImageOptions{Alpha: c.Alpha})
		}
	}
	return dst.Flush()
}

func scalePoint(p image.Point, s float64) image.Point {
	return geom.Pt(float64(p.X), float64(p.Y)).Mul(s).Round()
}

func scaledRect(r image.Rectangle, s float64) image.Rectangle {
	return geom.FromImageRect(r).PixelBounds(s)
}

func scaleMask(m *image.Alpha, s float64) *image.Alpha {
	out := image.NewAlpha(scaledRect(m.Rect, s))
	xdraw.CatmullRom.Scale(out, out.Rect, m, m.Rect, xdraw.Src, nil)
	return out
}

func scaleImage(img image.Image, s float64) image.Image {
	out := image.NewRGBA(scaledRect(image.Rectangle{Max: img.Bounds().Size()}, s))
	xdraw.CatmullRom.Scale(out, out.Rect, img, img.Bounds(), xdraw.Src, nil)
	return out
}

func subImage(img image.Image, r image.Rectangle) image.Image {
	if si, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return si.SubImage(r)
	}
	return img
}

func toRGBA(c color.Color) color.RGBA {
	if c == nil {
		return color.RGBA{}
	}
	return color.RGBAModel.Convert(c).(color.RGBA)
}
