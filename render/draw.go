// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/label/geom"
	"github.com/gogpu/label/surface"
	"github.com/gogpu/label/textframe"
)

// DrawRange draws the runes of p.Range of p.Frame onto p.Target.
//
// DrawRange panics if the frame or target is nil or the range is not a
// subrange of the frame text. A cancelled context stops drawing between
// run batches and DrawRange returns nil. The only error is a failure to
// flush the target.
func DrawRange(ctx context.Context, p Params) error {
	if p.Frame == nil {
		panic("render: DrawRange with nil frame")
	}
	if p.Target == nil {
		panic("render: DrawRange with nil target")
	}
	p.Range.Validate(p.Frame.Len())

	d := newDrawer(p)
	if p.Options != nil && p.Options.FillBackground {
		p.Target.FillRect(surface.UserRect(p.Target), p.Options.BackgroundColor)
	}
	if p.Range.IsEmpty() {
		return d.finish(ctx)
	}

	d.backgrounds()
	d.highlights()
	for i := d.first; i < d.last; i++ {
		line := &d.lines[i]
		for j := range line.Runs {
			if ctx.Err() != nil {
				return nil
			}
			d.glyphs(&line.Runs[j])
		}
	}
	if !d.opts.SkipDecorations {
		d.decorations()
	}
	return d.finish(ctx)
}

type drawer struct {
	p     Params
	opts  *Options
	dst   surface.Surface
	lines []textframe.Line

	// first and last bound the lines that can touch the target.
	first, last int

	vector bool
	scale  float64
	cache  *GlyphCache
}

func newDrawer(p Params) *drawer {
	d := &drawer{
		p:      p,
		opts:   p.Options,
		dst:    p.Target,
		lines:  p.Frame.Lines(),
		vector: p.IsVector || p.Target.IsVector(),
		scale:  p.Target.Scale(),
	}
	if d.opts == nil {
		d.opts = &defaultOptions
	}
	if d.vector && p.BaseScale > 0 {
		d.scale = p.BaseScale
	}
	d.cache = d.opts.GlyphCache
	if d.cache == nil {
		d.cache = GetGlobalGlyphCache()
	}

	if p.Target.IsVector() {
		d.first, d.last = 0, len(d.lines)
	} else {
		vis := surface.UserRect(p.Target)
		pad := d.opts.HighlightPadding
		d.first, d.last = p.Frame.LinesIn(vis.Min.Y-p.Origin.Y-pad, vis.Max.Y-p.Origin.Y+pad)
	}
	return d
}

func (d *drawer) finish(ctx context.Context) error {
	if d.p.DrawFunc != nil && ctx.Err() == nil {
		d.p.DrawFunc(ctx, d.dst, d.p.Frame.Bounds().Add(d.p.Origin))
	}
	if err := d.dst.Flush(); err != nil {
		return fmt.Errorf("render: flush target: %w", err)
	}
	return nil
}

func (d *drawer) backgrounds() {
	for i := d.first; i < d.last; i++ {
		line := &d.lines[i]
		for j := range line.Runs {
			r := &line.Runs[j]
			if r.Background.A == 0 {
				continue
			}
			x0, x1, ok := d.span(r, d.p.Range)
			if !ok {
				continue
			}
			box := r.Box()
			box.Min.X, box.Max.X = x0, x1
			d.dst.FillRect(box.Add(d.p.Origin), r.Background)
		}
	}
}

func (d *drawer) highlights() {
	for _, h := range d.opts.Highlights {
		rng := h.Range.Intersect(d.p.Range)
		if rng.IsEmpty() || h.Color.A == 0 {
			continue
		}
		for i := d.first; i < d.last; i++ {
			line := &d.lines[i]
			if !line.Range.Overlaps(rng) {
				continue
			}
			for j := range line.Runs {
				r := &line.Runs[j]
				if r.Range.IsEmpty() {
					continue
				}
				x0, x1, ok := d.span(r, rng)
				if !ok {
					continue
				}
				box := r.Box()
				box.Min.X, box.Max.X = x0, x1
				d.dst.FillRect(box.Inset(-d.opts.HighlightPadding).Add(d.p.Origin), h.Color)
			}
		}
	}
}

func (d *drawer) decorations() {
	for i := d.first; i < d.last; i++ {
		line := &d.lines[i]
		for j := range line.Runs {
			r := &line.Runs[j]
			rects := r.DecorationRects()
			if len(rects) == 0 {
				continue
			}
			x0, x1, ok := d.span(r, d.p.Range)
			if !ok {
				continue
			}
			c := d.color(r)
			for _, rc := range rects {
				rc.Min.X, rc.Max.X = x0, x1
				d.dst.FillRect(rc.Add(d.p.Origin), c)
			}
		}
	}
}

func (d *drawer) color(r *textframe.Run) color.RGBA {
	if d.opts.TextColor != nil {
		return *d.opts.TextColor
	}
	return r.Color
}

// glyphs draws the glyphs of r that fall in the requested range.
func (d *drawer) glyphs(r *textframe.Run) {
	c := d.color(r)
	if c.A == 0 {
		return
	}
	token := r.Range.IsEmpty()
	if token && !tokenIn(r, d.p.Range) {
		return
	}
	base := d.p.Origin.Add(r.Origin)

	if d.vector {
		path := surface.NewPath()
		for _, g := range r.Glyphs {
			if !token && !d.p.Range.Contains(g.Cluster) {
				continue
			}
			o := r.Font.Outline(g.ID)
			if o.IsEmpty() {
				continue
			}
			appendOutline(path, o, r.Size, d.snap(base.Add(g.Pos)))
		}
		if !path.IsEmpty() {
			d.dst.FillPath(path, c)
		}
		return
	}

	ppem := r.Size * d.scale
	mode := d.opts.Subpixel
	for _, g := range r.Glyphs {
		if !token && !d.p.Range.Contains(g.Cluster) {
			continue
		}
		dev := base.Add(g.Pos).Mul(d.scale)
		x, sub := Quantize(dev.X, mode)
		y := int(math.Round(dev.Y))
		mask := d.cache.Mask(r.Font, g.ID, ppem, sub, mode)
		if mask == nil {
			continue
		}
		d.dst.DrawMask(mask, image.Pt(x, y), c)
	}
}

// snap places a vector glyph origin where a raster at d.scale would.
func (d *drawer) snap(p geom.Point) geom.Point {
	if d.p.BaseScale <= 0 {
		return p
	}
	s := d.scale
	x, sub := Quantize(p.X*s, d.opts.Subpixel)
	fx := float64(x) + float64(sub)/float64(d.opts.Subpixel.Divisions())
	return geom.Pt(fx/s, math.Round(p.Y*s)/s)
}

// span returns the horizontal extent, in frame space, of the glyphs of r
// whose clusters lie in rng.
func (d *drawer) span(r *textframe.Run, rng textframe.Range) (x0, x1 float64, ok bool) {
	if r.Range.IsEmpty() {
		if !tokenIn(r, rng) {
			return 0, 0, false
		}
		return r.Origin.X, r.Origin.X + r.Advance, true
	}
	if !r.Range.Overlaps(rng) {
		return 0, 0, false
	}
	if rng.Start <= r.Range.Start && rng.End >= r.Range.End {
		return r.Origin.X, r.Origin.X + r.Advance, true
	}
	x0, x1 = math.Inf(1), math.Inf(-1)
	for _, g := range r.Glyphs {
		if !rng.Contains(g.Cluster) {
			continue
		}
		gx := r.Origin.X + g.Pos.X
		x0 = min(x0, gx)
		x1 = max(x1, gx+g.Advance)
	}
	if x0 > x1 {
		return 0, 0, false
	}
	return x0, x1, true
}

// tokenIn reports whether a truncation token run, which covers no text,
// belongs to rng. A token sits at a single index and belongs to every
// non-empty range that starts or ends there or spans it.
func tokenIn(r *textframe.Run, rng textframe.Range) bool {
	at := r.Range.Start
	return !rng.IsEmpty() && rng.Start <= at && at <= rng.End
}
