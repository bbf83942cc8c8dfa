// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/vector"

	"github.com/gogpu/label/geom"
	"github.com/gogpu/label/internal/cache"
	"github.com/gogpu/label/surface"
	"github.com/gogpu/label/textframe"
)

// SubpixelMode controls horizontal subpixel glyph positioning on raster
// targets.
type SubpixelMode int

const (
	// Subpixel4 uses 4 subpixel positions (0.0, 0.25, 0.5, 0.75).
	Subpixel4 SubpixelMode = 0

	// SubpixelNone snaps glyphs to whole pixels.
	SubpixelNone SubpixelMode = 1

	// Subpixel10 uses 10 subpixel positions.
	Subpixel10 SubpixelMode = 10
)

// Divisions returns the number of subpixel positions per pixel.
func (m SubpixelMode) Divisions() int {
	switch m {
	case Subpixel4:
		return 4
	case SubpixelNone:
		return 1
	default:
		return int(m)
	}
}

func (m SubpixelMode) String() string {
	switch m {
	case Subpixel4:
		return "Subpixel4"
	case SubpixelNone:
		return "SubpixelNone"
	case Subpixel10:
		return "Subpixel10"
	default:
		return "Unknown"
	}
}

// Quantize splits a device coordinate into its whole pixel and a
// subpixel index in [0, mode.Divisions()).
//
// With Subpixel4:
//   - 10.0 returns (10, 0)
//   - 10.25 returns (10, 1)
//   - 10.99 returns (10, 3)
//   - -0.5 returns (-1, 2)
func Quantize(pos float64, mode SubpixelMode) (whole int, sub uint8) {
	div := mode.Divisions()
	if div <= 1 {
		return int(math.Round(pos)), 0
	}
	f := math.Floor(pos)
	s := int((pos - f) * float64(div))
	s = min(max(s, 0), div-1)
	return int(f), uint8(s) //nolint:gosec // s is bounded [0, div-1]
}

// glyphKey identifies one rasterized glyph mask.
type glyphKey struct {
	font uint64
	gid  textframe.GlyphID
	ppem int32 // pixels per em in 26.6 fixed point
	subX uint8
	div  uint8
}

// GlyphCache holds rasterized glyph coverage masks shared by every
// raster draw. Masks are immutable once cached.
//
// GlyphCache is safe for concurrent use.
type GlyphCache struct {
	masks *cache.ShardedCache[glyphKey, *image.Alpha]
	rasts sync.Pool
}

// NewGlyphCache creates a glyph cache holding up to perShard masks in each
// of its shards. A non-positive value selects the default capacity.
func NewGlyphCache(perShard int) *GlyphCache {
	c := &GlyphCache{masks: cache.NewSharded[glyphKey, *image.Alpha](perShard)}
	c.rasts.New = func() any { return new(vector.Rasterizer) }
	return c
}

var (
	globalGlyphCache     *GlyphCache
	globalGlyphCacheOnce sync.Once
)

// GetGlobalGlyphCache returns the process-wide glyph cache used when
// Options.GlyphCache is nil.
func GetGlobalGlyphCache() *GlyphCache {
	globalGlyphCacheOnce.Do(func() {
		globalGlyphCache = NewGlyphCache(0)
	})
	return globalGlyphCache
}

// Mask returns the coverage of glyph gid rendered at ppem device pixels per
// em with its origin sub/div pixels right of a whole pixel. The mask's
// bounds are relative to that whole pixel. Empty glyphs yield nil.
func (c *GlyphCache) Mask(font *textframe.Font, gid textframe.GlyphID, ppem float64, sub uint8, mode SubpixelMode) *image.Alpha {
	key := glyphKey{
		font: font.ID(),
		gid:  gid,
		ppem: int32(math.Round(ppem * 64)), //nolint:gosec // glyph sizes fit
		subX: sub,
		div:  uint8(mode.Divisions()), //nolint:gosec // at most 10
	}
	return c.masks.GetOrCreate(key, func() *image.Alpha {
		return c.rasterize(font.Outline(gid), key)
	})
}

func (c *GlyphCache) rasterize(o *textframe.Outline, key glyphKey) *image.Alpha {
	if o.IsEmpty() {
		return nil
	}
	size := float64(key.ppem) / 64
	off := geom.Pt(float64(key.subX)/float64(key.div), 0)
	path := outlinePath(o, size, off)
	area := path.Bounds().PixelBounds(1)
	if area.Empty() {
		return nil
	}

	z := c.rasts.Get().(*vector.Rasterizer)
	defer c.rasts.Put(z)
	z.Reset(area.Dx(), area.Dy())
	z.DrawOp = draw.Src
	surface.RasterizePath(z, path, geom.Pt(-float64(area.Min.X), -float64(area.Min.Y)))

	mask := image.NewAlpha(image.Rect(0, 0, area.Dx(), area.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	mask.Rect = mask.Rect.Add(area.Min)
	return mask
}

// Len returns the number of cached masks.
func (c *GlyphCache) Len() int { return c.masks.Len() }

// Stats returns hit, miss and eviction counters.
func (c *GlyphCache) Stats() cache.Stats { return c.masks.Stats() }

// Clear drops every cached mask.
func (c *GlyphCache) Clear() { c.masks.Clear() }

// outlinePath scales an em-normalized outline to size and translates it by
// off.
func outlinePath(o *textframe.Outline, size float64, off geom.Point) *surface.Path {
	p := surface.NewPath()
	appendOutline(p, o, size, off)
	return p
}

func appendOutline(p *surface.Path, o *textframe.Outline, size float64, off geom.Point) {
	pt := func(q geom.Point) geom.Point { return q.Mul(size).Add(off) }
	for _, s := range o.Segments {
		switch s.Op {
		case textframe.OpMoveTo:
			a := pt(s.Args[0])
			p.MoveTo(a.X, a.Y)
		case textframe.OpLineTo:
			a := pt(s.Args[0])
			p.LineTo(a.X, a.Y)
		case textframe.OpQuadTo:
			c, a := pt(s.Args[0]), pt(s.Args[1])
			p.QuadTo(c.X, c.Y, a.X, a.Y)
		case textframe.OpCubeTo:
			c1, c2, a := pt(s.Args[0]), pt(s.Args[1]), pt(s.Args[2])
			p.CubicTo(c1.X, c1.Y, c2.X, c2.Y, a.X, a.Y)
		}
	}
}
