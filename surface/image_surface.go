// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/gogpu/label/geom"
)

// ImageSurface is a CPU-based surface that renders into a draw.Image,
// normally an *image.RGBA or, for opaque grayscale content, an *image.Gray.
//
// Paths are rasterized with golang.org/x/image/vector into a coverage mask
// and composited source-over.
//
// Example:
//
//	s := surface.NewImageSurface(800, 600)
//	defer s.Close()
//
//	s.Clear(color.White)
//	path := surface.NewPath()
//	path.Circle(400, 300, 100)
//	s.FillPath(path, color.RGBA{255, 0, 0, 255})
//
//	img := s.Snapshot()
type ImageSurface struct {
	dst    draw.Image
	bounds image.Rectangle
	scale  float64
	origin image.Point

	rast vector.Rasterizer

	// closed tracks if Close has been called
	closed bool
}

// NewImageSurface creates a new RGBA surface with the given dimensions at
// scale 1 and origin (0, 0).
func NewImageSurface(width, height int) *ImageSurface {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	return NewImageSurfaceFrom(image.NewRGBA(image.Rect(0, 0, width, height)), 1, image.Point{})
}

// NewImageSurfaceFrom creates a surface backed by an existing image. The
// surface renders into dst directly. scale is device pixels per point and
// origin the global device position of dst's top-left pixel.
func NewImageSurfaceFrom(dst draw.Image, scale float64, origin image.Point) *ImageSurface {
	if !(scale > 0) {
		panic("surface: scale must be positive")
	}
	return &ImageSurface{
		dst:    dst,
		bounds: dst.Bounds(),
		scale:  scale,
		origin: origin,
	}
}

// Width returns the surface width.
func (s *ImageSurface) Width() int {
	return s.bounds.Dx()
}

// Height returns the surface height.
func (s *ImageSurface) Height() int {
	return s.bounds.Dy()
}

// Scale returns device pixels per point.
func (s *ImageSurface) Scale() float64 {
	return s.scale
}

// Origin returns the global device position of the top-left pixel.
func (s *ImageSurface) Origin() image.Point {
	return s.origin
}

// IsVector returns false.
func (s *ImageSurface) IsVector() bool {
	return false
}

// toLocal maps a global device rectangle into dst coordinates.
func (s *ImageSurface) toLocal(r image.Rectangle) image.Rectangle {
	return r.Sub(s.origin).Add(s.bounds.Min)
}

// Clear fills the entire surface with the given color.
func (s *ImageSurface) Clear(c color.Color) {
	if s.closed {
		return
	}
	draw.Draw(s.dst, s.bounds, image.NewUniform(c), image.Point{}, draw.Src)
}

// FillRect fills r, snapped to the device pixel grid.
func (s *ImageSurface) FillRect(r geom.Rect, c color.Color) {
	if s.closed || r.Empty() {
		return
	}
	dr := s.toLocal(r.Snap(s.scale)).Intersect(s.bounds)
	if dr.Empty() {
		return
	}
	draw.Draw(s.dst, dr, image.NewUniform(c), image.Point{}, draw.Over)
}

// FillPath fills the given path.
func (s *ImageSurface) FillPath(p *Path, c color.Color) {
	if s.closed || p == nil || p.IsEmpty() {
		return
	}
	// The mask is rasterized in global device space so that surfaces with
	// different origins produce the same coverage. DrawMask clips it.
	dev := p.Transform(s.scale, geom.Point{})
	area := dev.Bounds().PixelBounds(1)
	global := image.Rectangle{Min: s.origin, Max: s.origin.Add(s.bounds.Size())}
	if !area.Overlaps(global) {
		return
	}
	mask := s.Rasterize(dev, area)
	s.DrawMask(mask, image.Point{}, c)
}

// Rasterize renders the coverage of a device-space path within area into
// a new alpha mask whose bounds equal area.
func (s *ImageSurface) Rasterize(p *Path, area image.Rectangle) *image.Alpha {
	w, h := area.Dx(), area.Dy()
	s.rast.Reset(w, h)
	s.rast.DrawOp = draw.Src
	RasterizePath(&s.rast, p, geom.Pt(-float64(area.Min.X), -float64(area.Min.Y)))

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	s.rast.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	mask.Rect = mask.Rect.Add(area.Min)
	return mask
}

// RasterizePath feeds p, translated by off, into z.
func RasterizePath(z *vector.Rasterizer, p *Path, off geom.Point) {
	pt := func(q geom.Point) (float32, float32) {
		q = q.Add(off)
		return float32(q.X), float32(q.Y)
	}
	open := false
	p.Walk(func(v Verb, pts []geom.Point) {
		switch v {
		case VerbMoveTo:
			if open {
				z.ClosePath()
			}
			z.MoveTo(pt(pts[0]))
			open = true
		case VerbLineTo:
			z.LineTo(pt(pts[0]))
		case VerbQuadTo:
			cx, cy := pt(pts[0])
			x, y := pt(pts[1])
			z.QuadTo(cx, cy, x, y)
		case VerbCubicTo:
			c1x, c1y := pt(pts[0])
			c2x, c2y := pt(pts[1])
			x, y := pt(pts[2])
			z.CubeTo(c1x, c1y, c2x, c2y, x, y)
		case VerbClose:
			z.ClosePath()
			open = false
		}
	})
	if open {
		z.ClosePath()
	}
}

// DrawMask composites c through mask positioned relative to at.
func (s *ImageSurface) DrawMask(mask *image.Alpha, at image.Point, c color.Color) {
	if s.closed || mask == nil {
		return
	}
	dr := s.toLocal(mask.Rect.Add(at))
	draw.DrawMask(s.dst, dr, image.NewUniform(c), image.Point{}, mask, mask.Rect.Min, draw.Over)
}

// DrawImage composites img at a global device position.
func (s *ImageSurface) DrawImage(img image.Image, at image.Point, opts *DrawImageOptions) {
	if s.closed || img == nil {
		return
	}
	src := img.Bounds()
	if opts != nil && opts.SrcRect != nil {
		src = opts.SrcRect.Intersect(src)
	}
	dr := s.toLocal(image.Rectangle{Min: at, Max: at.Add(src.Size())})

	alpha := 1.0
	if opts != nil {
		alpha = opts.Alpha
	}
	switch {
	case alpha >= 1:
		draw.Draw(s.dst, dr, img, src.Min, draw.Over)
	case alpha > 0:
		//nolint:gosec // alpha is in (0, 1)
		m := image.NewUniform(color.Alpha{A: uint8(math.Round(alpha * 255))})
		draw.DrawMask(s.dst, dr, img, src.Min, m, image.Point{}, draw.Over)
	}
}

// Flush is a no-op for ImageSurface.
func (s *ImageSurface) Flush() error {
	return nil
}

// Snapshot returns a copy of the current surface contents.
func (s *ImageSurface) Snapshot() *image.RGBA {
	if s.closed {
		return nil
	}
	out := image.NewRGBA(image.Rect(0, 0, s.Width(), s.Height()))
	draw.Draw(out, out.Bounds(), s.dst, s.bounds.Min, draw.Src)
	return out
}

// Image returns the underlying image. This is a direct reference, not a
// copy.
func (s *ImageSurface) Image() draw.Image {
	return s.dst
}

// Close releases resources associated with the surface.
func (s *ImageSurface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.dst = nil
	return nil
}

// Verify ImageSurface implements Surface interface.
var _ Surface = (*ImageSurface)(nil)
