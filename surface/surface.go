// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"image"
	"image/color"

	"github.com/gogpu/label/geom"
)

// ErrAllocationFailed is returned when a raster buffer cannot be allocated,
// either because the size is invalid or because it exceeds the configured
// byte limit.
var ErrAllocationFailed = errors.New("surface: allocation failed")

// Surface is a drawing target.
//
// Surfaces are NOT thread-safe. Each surface should be used from a single
// goroutine, or external synchronization must be used.
type Surface interface {
	// Width returns the surface width in device pixels.
	Width() int

	// Height returns the surface height in device pixels.
	Height() int

	// Scale returns device pixels per point. Vector surfaces return 1.
	Scale() float64

	// Origin returns the global device position of the surface's top-left
	// pixel.
	Origin() image.Point

	// IsVector reports whether the surface records resolution-independent
	// commands instead of pixels.
	IsVector() bool

	// Clear fills the entire surface with the given color, replacing
	// existing content.
	Clear(c color.Color)

	// FillRect fills a user-space rectangle. Raster surfaces snap the
	// edges to the nearest device pixel.
	FillRect(r geom.Rect, c color.Color)

	// FillPath fills a user-space path with the non-zero winding rule.
	FillPath(p *Path, c color.Color)

	// DrawMask composites c through mask. The mask's bounds are relative
	// to at, a global device position.
	DrawMask(mask *image.Alpha, at image.Point, c color.Color)

	// DrawImage composites img with its top-left pixel at the global
	// device position at. If opts is nil, default options are used.
	DrawImage(img image.Image, at image.Point, opts *DrawImageOptions)

	// Flush ensures all pending drawing operations are complete.
	Flush() error

	// Close releases all resources associated with the surface.
	// Close is idempotent; multiple calls are safe.
	Close() error
}

// DrawImageOptions defines options for drawing images.
type DrawImageOptions struct {
	// SrcRect is the source rectangle within the image.
	// If nil, the entire image is used.
	SrcRect *image.Rectangle

	// Alpha is the opacity (0.0 = transparent, 1.0 = opaque).
	Alpha float64
}

// DefaultDrawImageOptions returns DrawImageOptions with default values.
func DefaultDrawImageOptions() *DrawImageOptions {
	return &DrawImageOptions{Alpha: 1.0}
}

// DeviceRect maps a user-space rectangle to the device pixels a surface at
// the given scale and origin would touch.
func DeviceRect(r geom.Rect, scale float64, origin image.Point) image.Rectangle {
	return r.PixelBounds(scale).Sub(origin)
}

// UserRect returns the user-space rectangle covered by a surface.
func UserRect(s Surface) geom.Rect {
	sc := s.Scale()
	o := s.Origin()
	return geom.Rect{
		Min: geom.Pt(float64(o.X)/sc, float64(o.Y)/sc),
		Max: geom.Pt(float64(o.X+s.Width())/sc, float64(o.Y+s.Height())/sc),
	}
}
