package textframe

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	gotext "github.com/go-text/typesetting/font"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/label/geom"
	"github.com/gogpu/label/internal/cache"
)

// GlyphID is a glyph index in a font.
type GlyphID uint16

// outlinePPEM is the size at which outlines are extracted. Outlines are
// stored normalized to one em and scaled at draw time.
const outlinePPEM = 1024

// outlineCacheLimit bounds the per-font outline cache.
const outlineCacheLimit = 2048

var fontIDs atomic.Uint64

// Font is a parsed OpenType/TrueType font.
//
// The shaping side is a go-text/typesetting Font (read-only, safe for
// concurrent use); the outline side is an x/image sfnt.Font whose scratch
// buffers are pooled because sfnt.Buffer is not.
//
// Font is safe for concurrent use.
type Font struct {
	id     uint64
	name   string
	sfnt   *sfnt.Font
	shaped *gotext.Font

	buffers  sync.Pool
	outlines *cache.Cache[GlyphID, *Outline]
}

// ParseFont parses font data. The data must not be modified afterwards.
func ParseFont(data []byte) (*Font, error) {
	sf, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("textframe: parse outlines: %w", err)
	}
	face, err := gotext.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("textframe: parse for shaping: %w", err)
	}

	f := &Font{
		id:       fontIDs.Add(1),
		sfnt:     sf,
		shaped:   face.Font,
		outlines: cache.New[GlyphID, *Outline](outlineCacheLimit),
	}
	f.buffers.New = func() any { return new(sfnt.Buffer) }
	if name, err := sf.Name(nil, sfnt.NameIDFull); err == nil {
		f.name = name
	}
	return f, nil
}

// ID returns a process-unique identifier for the font.
func (f *Font) ID() uint64 { return f.id }

// Name returns the font's full name, if the name table has one.
func (f *Font) Name() string { return f.name }

// Metrics describes vertical font metrics at a given size, in points.
// Descent is positive (distance below the baseline).
type Metrics struct {
	Ascent  float64
	Descent float64
	LineGap float64
}

// LineHeight returns Ascent + Descent + LineGap.
func (m Metrics) LineHeight() float64 {
	return m.Ascent + m.Descent + m.LineGap
}

// Metrics returns the font's vertical metrics at size.
func (f *Font) Metrics(size float64) Metrics {
	buf := f.buffers.Get().(*sfnt.Buffer)
	defer f.buffers.Put(buf)

	m, err := f.sfnt.Metrics(buf, toFixed(size), font.HintingNone)
	if err != nil {
		return Metrics{Ascent: size * 0.8, Descent: size * 0.2}
	}
	ascent := fromFixed(m.Ascent)
	descent := fromFixed(m.Descent)
	gap := fromFixed(m.Height) - ascent - descent
	return Metrics{Ascent: ascent, Descent: descent, LineGap: max(gap, 0)}
}

// Outline returns the glyph outline normalized to a one-point em.
// Glyphs without an outline (spaces, missing glyphs) yield an empty Outline.
func (f *Font) Outline(gid GlyphID) *Outline {
	return f.outlines.GetOrCreate(gid, func() *Outline {
		return f.loadOutline(gid)
	})
}

func (f *Font) loadOutline(gid GlyphID) *Outline {
	buf := f.buffers.Get().(*sfnt.Buffer)
	defer f.buffers.Put(buf)

	segs, err := f.sfnt.LoadGlyph(buf, sfnt.GlyphIndex(gid), fixed.I(outlinePPEM), nil)
	if err != nil || len(segs) == 0 {
		return &Outline{}
	}

	const k = 1.0 / outlinePPEM
	out := &Outline{Segments: make([]Segment, len(segs))}
	var bounds geom.Rect
	first := true
	for i, s := range segs {
		seg := Segment{Op: segmentOp(s.Op)}
		for j := range seg.Op.nargs() {
			p := geom.Pt(fromFixed(s.Args[j].X)*k, fromFixed(s.Args[j].Y)*k)
			seg.Args[j] = p
			if first {
				bounds = geom.Rect{Min: p, Max: p}
				first = false
			} else {
				bounds.Min.X = min(bounds.Min.X, p.X)
				bounds.Min.Y = min(bounds.Min.Y, p.Y)
				bounds.Max.X = max(bounds.Max.X, p.X)
				bounds.Max.Y = max(bounds.Max.Y, p.Y)
			}
		}
		out.Segments[i] = seg
	}
	out.Bounds = bounds
	return out
}

func segmentOp(op sfnt.SegmentOp) SegmentOp {
	switch op {
	case sfnt.SegmentOpLineTo:
		return OpLineTo
	case sfnt.SegmentOpQuadTo:
		return OpQuadTo
	case sfnt.SegmentOpCubeTo:
		return OpCubeTo
	default:
		return OpMoveTo
	}
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
