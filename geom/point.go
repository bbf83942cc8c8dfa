// Package geom holds the float geometry shared by the layout, drawing and
// tiling packages.
//
// Coordinates are in points (user space) unless a function says otherwise.
// Device pixels are obtained by multiplying with a display scale and
// rounding outward with Rect.PixelBounds.
package geom

import (
	"image"
	"math"
)

// Point represents a 2D point or vector.
type Point struct {
	X, Y float64
}

// Pt is a convenience function to create a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns the sum of two points (vector addition).
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the difference of two points (vector subtraction).
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mul returns the point scaled by a scalar.
func (p Point) Mul(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Floor splits p into its integer part and the non-negative fractional
// remainder.
func (p Point) Floor() (whole, frac Point) {
	fx, fy := math.Floor(p.X), math.Floor(p.Y)
	return Point{fx, fy}, Point{p.X - fx, p.Y - fy}
}

// Round returns the nearest integer point.
func (p Point) Round() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}
