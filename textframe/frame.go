package textframe

import (
	"image/color"
	"sort"
	"sync/atomic"

	"github.com/gogpu/label/geom"
)

var frameIDs atomic.Uint64

// Glyph is a positioned glyph. Pos is relative to the owning Run's Origin.
type Glyph struct {
	ID      GlyphID
	Cluster int // rune index into the frame text
	Pos     geom.Point
	Advance float64
}

// Run is a sequence of glyphs sharing one font, size and style, placed on
// a single baseline.
type Run struct {
	Range  Range
	Font   *Font
	Size   float64
	Color  color.RGBA
	Origin geom.Point // start of the run on the baseline, in frame space
	Glyphs []Glyph

	// Advance is the run's extent along the baseline.
	Advance float64

	// Background, if non-transparent, fills the run's line box.
	Background color.RGBA

	Underline     bool
	Strikethrough bool

	// Ink is the union of the glyph outline bounds, in frame space.
	Ink geom.Rect

	ascent, descent float64
}

// Box returns the run's line box (ascent to descent), in frame space.
func (r *Run) Box() geom.Rect {
	return geom.Rect{
		Min: geom.Pt(r.Origin.X, r.Origin.Y-r.ascent),
		Max: geom.Pt(r.Origin.X+r.Advance, r.Origin.Y+r.descent),
	}
}

// DecorationRects returns the underline and strikethrough rectangles the
// run draws, in frame space.
func (r *Run) DecorationRects() []geom.Rect {
	if !r.Underline && !r.Strikethrough {
		return nil
	}
	thickness := max(r.Size/14, 0.5)
	var out []geom.Rect
	if r.Underline {
		y := r.Origin.Y + r.Size*0.1
		out = append(out, geom.R(r.Origin.X, y, r.Advance, thickness))
	}
	if r.Strikethrough {
		y := r.Origin.Y - r.ascent*0.3
		out = append(out, geom.R(r.Origin.X, y, r.Advance, thickness))
	}
	return out
}

// Line is one laid-out line.
type Line struct {
	Range    Range
	Baseline float64
	Ascent   float64
	Descent  float64
	Width    float64
	Runs     []Run

	// Rect is the typographic line box in frame space.
	Rect geom.Rect
}

// Frame is an immutable layout result.
type Frame struct {
	id        uint64
	text      []rune
	lines     []Line
	bounds    geom.Rect
	ink       geom.Rect
	grayscale bool
	truncated bool
}

func newFrame(text []rune, lines []Line) *Frame {
	f := &Frame{
		id:        frameIDs.Add(1),
		text:      text,
		lines:     lines,
		grayscale: true,
	}
	for i := range f.lines {
		l := &f.lines[i]
		if i == 0 {
			f.bounds = l.Rect
		} else {
			f.bounds.Min.X = min(f.bounds.Min.X, l.Rect.Min.X)
			f.bounds.Max.X = max(f.bounds.Max.X, l.Rect.Max.X)
			f.bounds.Max.Y = max(f.bounds.Max.Y, l.Rect.Max.Y)
		}
		for j := range l.Runs {
			r := &l.Runs[j]
			f.ink = f.ink.Union(r.Ink)
			if r.Background.A != 0 {
				f.ink = f.ink.Union(r.Box())
				f.grayscale = f.grayscale && isGray(r.Background)
			}
			for _, d := range r.DecorationRects() {
				f.ink = f.ink.Union(d)
			}
			f.grayscale = f.grayscale && isGray(r.Color)
		}
	}
	return f
}

func isGray(c color.RGBA) bool {
	return c.R == c.G && c.G == c.B
}

// ID returns the frame's identity. Two frames built from equal input have
// different IDs.
func (f *Frame) ID() uint64 { return f.id }

// Len returns the number of runes in the frame text.
func (f *Frame) Len() int { return len(f.text) }

// Text returns the frame text.
func (f *Frame) Text() string { return string(f.text) }

// FullRange returns the range covering the whole frame.
func (f *Frame) FullRange() Range { return Range{0, len(f.text)} }

// IsEmpty reports whether the frame has nothing to draw.
func (f *Frame) IsEmpty() bool { return len(f.lines) == 0 }

// Lines returns the laid-out lines. The slice must not be modified.
func (f *Frame) Lines() []Line { return f.lines }

// Bounds returns the typographic bounds: the union of all line boxes.
func (f *Frame) Bounds() geom.Rect { return f.bounds }

// ImageBounds returns the bounds of everything the frame paints: glyph
// ink, run backgrounds and decorations. It may exceed Bounds for glyphs
// with overhangs.
func (f *Frame) ImageBounds() geom.Rect { return f.ink }

// IsGrayscale reports whether every text and background color is a gray.
func (f *Frame) IsGrayscale() bool { return f.grayscale }

// IsTruncated reports whether the builder dropped lines to honor MaxLines.
func (f *Frame) IsTruncated() bool { return f.truncated }

// LinesIn returns the index range [first, last) of lines whose vertical
// extent (line box or ink) intersects [minY, maxY). Lines are stored top to
// bottom, so the search is logarithmic.
func (f *Frame) LinesIn(minY, maxY float64) (first, last int) {
	first = sort.Search(len(f.lines), func(i int) bool {
		return lineBottom(&f.lines[i]) > minY
	})
	last = first
	for last < len(f.lines) && lineTop(&f.lines[last]) < maxY {
		last++
	}
	return first, last
}

func lineTop(l *Line) float64 {
	top := l.Rect.Min.Y
	for i := range l.Runs {
		if !l.Runs[i].Ink.Empty() {
			top = min(top, l.Runs[i].Ink.Min.Y)
		}
	}
	return top
}

func lineBottom(l *Line) float64 {
	bottom := l.Rect.Max.Y
	for i := range l.Runs {
		r := &l.Runs[i]
		if !r.Ink.Empty() {
			bottom = max(bottom, r.Ink.Max.Y)
		}
		for _, d := range r.DecorationRects() {
			bottom = max(bottom, d.Max.Y)
		}
	}
	return bottom
}
