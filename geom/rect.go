package geom

import (
	"image"
	"math"
)

// Rect is an axis-aligned rectangle. Min is inclusive, Max exclusive.
// A Rect with Max.X <= Min.X or Max.Y <= Min.Y is empty.
type Rect struct {
	Min, Max Point
}

// R creates a Rect from its origin and size.
func R(x, y, w, h float64) Rect {
	return Rect{Min: Point{x, y}, Max: Point{x + w, y + h}}
}

// FromImageRect converts an integer rectangle.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{
		Min: Point{float64(r.Min.X), float64(r.Min.Y)},
		Max: Point{float64(r.Max.X), float64(r.Max.Y)},
	}
}

// Dx returns the width.
func (r Rect) Dx() float64 { return r.Max.X - r.Min.X }

// Dy returns the height.
func (r Rect) Dy() float64 { return r.Max.Y - r.Min.Y }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}

// Area returns Dx*Dy, or 0 for an empty rectangle.
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// Add translates r by p.
func (r Rect) Add(p Point) Rect {
	return Rect{Min: r.Min.Add(p), Max: r.Max.Add(p)}
}

// Scale multiplies both corners by s.
func (r Rect) Scale(s float64) Rect {
	return Rect{Min: r.Min.Mul(s), Max: r.Max.Mul(s)}
}

// Inset shrinks r by d on every side; negative d grows it.
func (r Rect) Inset(d float64) Rect {
	return Rect{
		Min: Point{r.Min.X + d, r.Min.Y + d},
		Max: Point{r.Max.X - d, r.Max.Y - d},
	}
}

// Union returns the smallest rectangle containing r and s.
// Empty operands are ignored.
func (r Rect) Union(s Rect) Rect {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	return Rect{
		Min: Point{math.Min(r.Min.X, s.Min.X), math.Min(r.Min.Y, s.Min.Y)},
		Max: Point{math.Max(r.Max.X, s.Max.X), math.Max(r.Max.Y, s.Max.Y)},
	}
}

// Intersect returns the overlap of r and s. The result may be empty.
func (r Rect) Intersect(s Rect) Rect {
	return Rect{
		Min: Point{math.Max(r.Min.X, s.Min.X), math.Max(r.Min.Y, s.Min.Y)},
		Max: Point{math.Min(r.Max.X, s.Max.X), math.Min(r.Max.Y, s.Max.Y)},
	}
}

// Overlaps reports whether r and s share a non-empty area.
func (r Rect) Overlaps(s Rect) bool {
	return !r.Intersect(s).Empty()
}

// Contains reports whether s lies entirely inside r.
// An empty s is contained in every rectangle.
func (r Rect) Contains(s Rect) bool {
	if s.Empty() {
		return true
	}
	return s.Min.X >= r.Min.X && s.Min.Y >= r.Min.Y &&
		s.Max.X <= r.Max.X && s.Max.Y <= r.Max.Y
}

// PixelBounds scales r and rounds it outward to whole device pixels.
func (r Rect) PixelBounds(scale float64) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(r.Min.X*scale)),
		int(math.Floor(r.Min.Y*scale)),
		int(math.Ceil(r.Max.X*scale)),
		int(math.Ceil(r.Max.Y*scale)),
	)
}

// Snap scales r and rounds each edge to the nearest device pixel.
// Used for fills that must land on identical pixels no matter which
// integer-aligned surface they are drawn into.
func (r Rect) Snap(scale float64) image.Rectangle {
	return image.Rect(
		int(math.Round(r.Min.X*scale)),
		int(math.Round(r.Min.Y*scale)),
		int(math.Round(r.Max.X*scale)),
		int(math.Round(r.Max.Y*scale)),
	)
}

// Insets are per-edge distances.
type Insets struct {
	Top, Left, Bottom, Right float64
}

// Apply shrinks r by the insets.
func (in Insets) Apply(r Rect) Rect {
	return Rect{
		Min: Point{r.Min.X + in.Left, r.Min.Y + in.Top},
		Max: Point{r.Max.X - in.Right, r.Max.Y - in.Bottom},
	}
}
