// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"image/color"

	"github.com/gogpu/label/geom"
	"github.com/gogpu/label/surface"
	"github.com/gogpu/label/textframe"
)

// DrawFunc draws custom content after the text. rect is the frame's
// bounds in the target's user space.
type DrawFunc func(ctx context.Context, dst surface.Surface, rect geom.Rect)

// Highlight is a resolved overlay: a text range painted behind the glyphs.
type Highlight struct {
	Range textframe.Range
	Color color.RGBA
}

// Options are resolved, read-only drawing options.
type Options struct {
	// TextColor, if set, replaces every run's color.
	TextColor *color.RGBA

	Highlights []Highlight

	// HighlightPadding grows highlight rectangles on every side, in points.
	HighlightPadding float64

	// FillBackground fills the target's visible area with BackgroundColor
	// before drawing anything else.
	FillBackground  bool
	BackgroundColor color.RGBA

	// SkipDecorations suppresses underlines and strikethroughs.
	SkipDecorations bool

	// Subpixel is the horizontal glyph positioning precision on raster
	// targets. The zero value means Subpixel4.
	Subpixel SubpixelMode

	// GlyphCache overrides the shared glyph mask cache.
	GlyphCache *GlyphCache
}

// Params describe one DrawRange call.
type Params struct {
	Frame *textframe.Frame
	Range textframe.Range

	// Origin is where the frame's origin lands in the target's user space.
	Origin geom.Point

	Target surface.Surface

	// IsVector forces outline drawing even on a raster target.
	IsVector bool

	// BaseScale applies to vector targets only: glyph origins are snapped
	// as a raster at this scale would place them. Zero leaves them
	// unsnapped. Raster targets always use Target.Scale().
	BaseScale float64

	Options  *Options
	DrawFunc DrawFunc
}

var defaultOptions Options
