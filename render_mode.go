package label

// RenderMode selects how a frame is turned into pixels.
type RenderMode int

const (
	// ModeDirect draws straight into the presented surface with no
	// intermediate bitmap.
	ModeDirect RenderMode = iota

	// ModeImage draws into one cached purgeable bitmap that is composited
	// into the presented surface.
	ModeImage

	// ModeImageInSublayer hosts the cached bitmap in its own compositing
	// layer, so it can be faded or moved without re-rasterizing.
	ModeImageInSublayer

	// ModeTiled splits the content into independently cached tiles that
	// are prerendered in the background.
	ModeTiled
)

// String returns the render mode name.
func (m RenderMode) String() string {
	switch m {
	case ModeDirect:
		return "Direct"
	case ModeImage:
		return "Image"
	case ModeImageInSublayer:
		return "ImageInSublayer"
	case ModeTiled:
		return "Tiled"
	default:
		return "Unknown"
	}
}

// UsesImage reports whether the mode draws through an intermediate bitmap.
func (m RenderMode) UsesImage() bool {
	return m != ModeDirect
}

// ModePolicy holds the tuning constants of mode selection.
type ModePolicy struct {
	// MaxImageArea is the largest content area, in device pixels, that is
	// backed by a single bitmap. Larger content is tiled. Content exactly
	// this large is not.
	MaxImageArea float64

	// DirectAreaFraction bounds the content area, relative to the
	// viewport area, that may be drawn directly.
	DirectAreaFraction float64

	// MaxDirectRedrawCost bounds the glyph count that may be drawn
	// directly on every composite.
	MaxDirectRedrawCost float64

	// LargeFrameLines is the line count above which ComputeRenderInfo
	// checks for cancellation before walking the lines.
	LargeFrameLines int
}

// DefaultModePolicy returns the default tuning constants.
func DefaultModePolicy() ModePolicy {
	return ModePolicy{
		MaxImageArea:        4096 * 4096,
		DirectAreaFraction:  1,
		MaxDirectRedrawCost: 4000,
		LargeFrameLines:     256,
	}
}

// ModeInput is what SelectMode decides on.
type ModeInput struct {
	// ContentArea and ViewportArea are in device pixels.
	ContentArea  float64
	ViewportArea float64

	PreferImage      bool
	NeedsCompositing bool

	// RedrawCost estimates the work of one direct draw, in glyphs.
	RedrawCost float64
}

// SelectMode chooses a render mode. It never fails: an image preference
// that a single bitmap cannot honor degrades to ModeTiled.
//
// Heuristics:
//   - Content above MaxImageArea: Tiled, whatever the preference
//   - Image preferred: ImageInSublayer if the content composites on its
//     own, Image otherwise
//   - Small, cheap content: Direct
//   - Everything else: an image, as above
func SelectMode(in ModeInput, policy ModePolicy) RenderMode {
	if in.ContentArea > policy.MaxImageArea {
		return ModeTiled
	}
	if !in.PreferImage &&
		in.ContentArea <= policy.DirectAreaFraction*in.ViewportArea &&
		in.RedrawCost <= policy.MaxDirectRedrawCost {
		return ModeDirect
	}
	if in.NeedsCompositing {
		return ModeImageInSublayer
	}
	return ModeImage
}
