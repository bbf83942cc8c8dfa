package label

import (
	"context"
	"image"
	"image/color"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/label/geom"
	"github.com/gogpu/label/textframe"
)

// ViewportParams describe where a frame is displayed.
type ViewportParams struct {
	// Size is the viewport extent in points. The viewport's top-left
	// corner is the user-space origin.
	Size geom.Point

	// Insets shrink the clipping rectangle when ClipsToBounds is set.
	Insets geom.Insets

	// DisplayScale is device pixels per point. Zero means 1.
	DisplayScale float64

	ClipsToBounds bool

	// BackgroundColor is the host's background. It is painted into
	// intermediate bitmaps so they can be composited opaquely.
	BackgroundColor color.RGBA

	// AllowGrayscale permits single-channel bitmaps for gray content on
	// an opaque gray background.
	AllowGrayscale bool

	// HighlightPadding is the extent, in points, by which highlights
	// and other overlays may exceed the frame's line boxes.
	HighlightPadding float64

	// NeedsCompositing requests an image mode that composites
	// independently of the host, for fades or animations.
	NeedsCompositing bool
}

// Scale returns DisplayScale, or 1 if it is unset.
func (p ViewportParams) Scale() float64 {
	if p.DisplayScale > 0 {
		return p.DisplayScale
	}
	return 1
}

// Viewport returns the viewport rectangle in user space.
func (p ViewportParams) Viewport() geom.Rect {
	return geom.Rect{Max: p.Size}
}

// RenderInfo is a render-mode decision.
type RenderInfo struct {
	// Bounds is the painted extent in user space, aligned to the device
	// pixel grid.
	Bounds geom.Rect

	Mode   RenderMode
	Format gputypes.TextureFormat

	ShouldFillBackground bool
	IsOpaque             bool
	MayBeClipped         bool

	// Discard is set when the computation was cancelled. The decision is
	// a best-effort estimate and should not be acted on.
	Discard bool
}

// DeviceBounds returns Bounds in device pixels at scale.
func (ri RenderInfo) DeviceBounds(scale float64) image.Rectangle {
	return ri.Bounds.PixelBounds(scale)
}

// ComputeRenderInfo decides how frame, placed at origin, should be
// rendered into the viewport. It has no side effects and returns the same
// decision for the same inputs.
//
// If ctx is done before the lines of a large frame are walked, the result
// is a best-effort estimate with Discard set. Cancellation is never an
// error.
//
// ComputeRenderInfo panics if frame is nil.
func ComputeRenderInfo(ctx context.Context, frame *textframe.Frame, origin geom.Point, params ViewportParams, preferImage bool, policy ModePolicy) RenderInfo {
	if frame == nil {
		panic("label: nil frame")
	}
	if frame.IsEmpty() {
		return RenderInfo{Mode: ModeDirect, Format: gputypes.TextureFormatRGBA8Unorm}
	}
	scale := params.Scale()

	b := frame.ImageBounds()
	if pad := params.HighlightPadding; pad > 0 {
		b = b.Union(frame.Bounds().Inset(-pad))
	}
	b = b.Add(origin)
	content := b.PixelBounds(scale)

	// Glyph positions are quantized to the device grid, which can move
	// ink by up to half a pixel. Only the painted extent grows; clipping
	// and mode selection use the content itself.
	px := b.Inset(-1 / scale).PixelBounds(scale)

	info := RenderInfo{
		Bounds: geom.FromImageRect(px).Scale(1 / scale),
		Format: gputypes.TextureFormatRGBA8Unorm,
	}

	viewport := params.Viewport()
	clip := viewport
	if params.ClipsToBounds {
		clip = params.Insets.Apply(viewport)
	}
	info.MayBeClipped = !clip.Contains(geom.FromImageRect(content).Scale(1 / scale))

	var cost float64
	lines := frame.Lines()
	if len(lines) > policy.LargeFrameLines && ctx.Err() != nil {
		info.Discard = true
		cost = float64(frame.Len())
	} else {
		cost = redrawCost(frame, viewport.Add(origin.Mul(-1)))
	}

	info.Mode = SelectMode(ModeInput{
		ContentArea:      float64(content.Dx()) * float64(content.Dy()),
		ViewportArea:     viewport.Area() * scale * scale,
		PreferImage:      preferImage,
		NeedsCompositing: params.NeedsCompositing,
		RedrawCost:       cost,
	}, policy)

	bg := params.BackgroundColor
	info.ShouldFillBackground = bg.A != 0 && info.Mode.UsesImage()
	info.IsOpaque = bg.A == 0xff && info.Bounds.Contains(viewport)
	if params.AllowGrayscale && info.ShouldFillBackground && bg.A == 0xff &&
		bg.R == bg.G && bg.G == bg.B && frame.IsGrayscale() {
		info.Format = gputypes.TextureFormatR8Unorm
	}
	return info
}

// redrawCost counts the glyphs on lines intersecting visible, in frame
// space.
func redrawCost(frame *textframe.Frame, visible geom.Rect) float64 {
	first, last := frame.LinesIn(visible.Min.Y, visible.Max.Y)
	n := 0
	lines := frame.Lines()
	for i := first; i < last; i++ {
		for j := range lines[i].Runs {
			n += len(lines[i].Runs[j].Glyphs)
		}
	}
	return float64(n)
}
