// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/label/geom"
)

// TestNewImageSurface tests surface creation.
func TestNewImageSurface(t *testing.T) {
	s := NewImageSurface(100, 100)
	if s == nil {
		t.Fatal("NewImageSurface returned nil")
	}
	defer s.Close()

	if s.Width() != 100 {
		t.Errorf("Width() = %d, want 100", s.Width())
	}
	if s.Height() != 100 {
		t.Errorf("Height() = %d, want 100", s.Height())
	}
	if s.Scale() != 1 || s.IsVector() {
		t.Errorf("Scale() = %v, IsVector() = %v, want 1, false", s.Scale(), s.IsVector())
	}
}

// TestNewImageSurfaceInvalidSize tests handling of invalid dimensions.
func TestNewImageSurfaceInvalidSize(t *testing.T) {
	// Should clamp to minimum of 1x1
	s := NewImageSurface(0, 0)
	defer s.Close()

	if s.Width() != 1 || s.Height() != 1 {
		t.Errorf("expected 1x1, got %dx%d", s.Width(), s.Height())
	}
}

// TestImageSurfaceClear tests the Clear operation.
func TestImageSurfaceClear(t *testing.T) {
	s := NewImageSurface(10, 10)
	defer s.Close()

	s.Clear(color.RGBA{255, 0, 0, 255})

	img := s.Snapshot()
	if img == nil {
		t.Fatal("Snapshot returned nil")
	}
	c := img.RGBAAt(5, 5)
	if c != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel = %v, want (255, 0, 0, 255)", c)
	}
}

// TestImageSurfaceFillRect tests snapped rectangle fills.
func TestImageSurfaceFillRect(t *testing.T) {
	s := NewImageSurfaceFrom(image.NewRGBA(image.Rect(0, 0, 100, 100)), 2, image.Point{})
	defer s.Close()

	s.Clear(color.White)
	// 10.2*2 rounds to 20, 30.2*2 rounds to 60.
	s.FillRect(geom.Rect{Min: geom.Pt(10.2, 10.2), Max: geom.Pt(30.2, 30.2)}, color.RGBA{255, 0, 0, 255})

	img := s.Snapshot()
	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{19, 19, color.RGBA{255, 255, 255, 255}},
		{20, 20, color.RGBA{255, 0, 0, 255}},
		{59, 59, color.RGBA{255, 0, 0, 255}},
		{60, 60, color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

// TestImageSurfaceFillPath tests filling a circle.
func TestImageSurfaceFillPath(t *testing.T) {
	s := NewImageSurface(100, 100)
	defer s.Close()

	s.Clear(color.White)

	path := NewPath()
	path.Circle(50, 50, 30)
	s.FillPath(path, color.RGBA{0, 0, 255, 255})

	img := s.Snapshot()

	// Center should be blue
	c := img.RGBAAt(50, 50)
	if c.B < 200 || c.R > 50 {
		t.Errorf("center pixel = %v, should be blue", c)
	}

	// Corner should be white
	c = img.RGBAAt(5, 5)
	if c.R != 255 || c.G != 255 || c.B != 255 {
		t.Errorf("corner pixel = %v, should be white", c)
	}
}

// TestImageSurfaceFillPathClipped tests a path extending past the surface.
func TestImageSurfaceFillPathClipped(t *testing.T) {
	s := NewImageSurface(20, 20)
	defer s.Close()

	path := NewPath()
	path.Rectangle(-50, -50, 60, 60)
	s.FillPath(path, color.RGBA{0, 255, 0, 255})

	img := s.Snapshot()
	if c := img.RGBAAt(5, 5); c.G != 255 {
		t.Errorf("inside pixel = %v, want green", c)
	}
	if c := img.RGBAAt(15, 15); c.A != 0 {
		t.Errorf("outside pixel = %v, want transparent", c)
	}
}

// TestImageSurfaceOriginInvariance checks that integer origin shifts do not
// change pixels.
func TestImageSurfaceOriginInvariance(t *testing.T) {
	draw := func(s *ImageSurface) {
		p := NewPath()
		p.Circle(37.3, 41.7, 12.9)
		s.FillPath(p, color.RGBA{10, 20, 30, 255})
		s.FillRect(geom.R(20.4, 60.6, 33.3, 3.3), color.RGBA{200, 0, 0, 255})
	}

	full := NewImageSurfaceFrom(image.NewRGBA(image.Rect(0, 0, 200, 200)), 1.5, image.Point{})
	draw(full)

	tile := NewImageSurfaceFrom(image.NewRGBA(image.Rect(0, 0, 64, 64)), 1.5, image.Pt(32, 32))
	draw(tile)

	a, b := full.Snapshot(), tile.Snapshot()
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if ca, cb := a.RGBAAt(x+32, y+32), b.RGBAAt(x, y); ca != cb {
				t.Fatalf("pixel(%d,%d): full %v, tile %v", x, y, ca, cb)
			}
		}
	}
}

// TestImageSurfaceDrawMask tests mask compositing at a device position.
func TestImageSurfaceDrawMask(t *testing.T) {
	s := NewImageSurfaceFrom(image.NewRGBA(image.Rect(0, 0, 10, 10)), 1, image.Pt(100, 100))
	defer s.Close()

	mask := image.NewAlpha(image.Rect(-1, -1, 1, 1))
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}
	s.DrawMask(mask, image.Pt(105, 105), color.RGBA{0, 0, 0, 255})

	img := s.Snapshot()
	for _, p := range []image.Point{{4, 4}, {5, 5}} {
		if c := img.RGBAAt(p.X, p.Y); c.A != 255 {
			t.Errorf("pixel %v = %v, want opaque", p, c)
		}
	}
	if c := img.RGBAAt(6, 6); c.A != 0 {
		t.Errorf("pixel (6,6) = %v, want transparent", c)
	}
}

// TestImageSurfaceDrawImage tests image drawing.
func TestImageSurfaceDrawImage(t *testing.T) {
	s := NewImageSurface(100, 100)
	defer s.Close()

	s.Clear(color.White)

	srcImg := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			srcImg.SetRGBA(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	s.DrawImage(srcImg, image.Pt(20, 30), nil)

	img := s.Snapshot()
	c := img.RGBAAt(25, 35)
	if c.R != 255 || c.G != 0 || c.B != 0 {
		t.Errorf("drawn image pixel = %v, should be red", c)
	}
	c = img.RGBAAt(5, 5)
	if c.R != 255 || c.G != 255 || c.B != 255 {
		t.Errorf("outside pixel = %v, should be white", c)
	}

	s.Clear(color.Transparent)
	s.DrawImage(srcImg, image.Pt(0, 0), &DrawImageOptions{Alpha: 0.5})
	if a := s.Snapshot().RGBAAt(1, 1).A; a < 126 || a > 129 {
		t.Errorf("half-alpha pixel A = %d, want ~128", a)
	}
}

// TestImageSurfaceGray tests rendering into a grayscale buffer.
func TestImageSurfaceGray(t *testing.T) {
	s := NewImageSurfaceFrom(image.NewGray(image.Rect(0, 0, 10, 10)), 1, image.Point{})
	s.Clear(color.White)
	s.FillRect(geom.R(0, 0, 5, 10), color.Black)
	img := s.Snapshot()
	if c := img.RGBAAt(2, 2); c.R != 0 || c.A != 255 {
		t.Errorf("left pixel = %v, want black", c)
	}
	if c := img.RGBAAt(7, 2); c.R != 255 {
		t.Errorf("right pixel = %v, want white", c)
	}
}

// TestImageSurfaceClose tests closing and double-close safety.
func TestImageSurfaceClose(t *testing.T) {
	s := NewImageSurface(10, 10)

	if err := s.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("double Close() returned error: %v", err)
	}

	// Operations after close should be safe
	s.Clear(color.White)
	s.FillPath(NewPath(), color.Black)
	if s.Snapshot() != nil {
		t.Error("Snapshot after Close should be nil")
	}
}

func TestAlloc(t *testing.T) {
	tests := []struct {
		name    string
		size    image.Point
		format  gputypes.TextureFormat
		limit   int64
		wantErr bool
		gray    bool
	}{
		{"rgba", image.Pt(10, 10), gputypes.TextureFormatRGBA8Unorm, 0, false, false},
		{"bgra", image.Pt(10, 10), gputypes.TextureFormatBGRA8Unorm, 400, false, false},
		{"gray", image.Pt(10, 10), gputypes.TextureFormatR8Unorm, 100, false, true},
		{"over limit", image.Pt(10, 10), gputypes.TextureFormatRGBA8Unorm, 399, true, false},
		{"zero size", image.Pt(0, 10), gputypes.TextureFormatRGBA8Unorm, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Alloc(tt.size, tt.format, tt.limit)
			if tt.wantErr {
				if !errors.Is(err, ErrAllocationFailed) {
					t.Errorf("err = %v, want ErrAllocationFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Alloc: %v", err)
			}
			if _, ok := img.(*image.Gray); ok != tt.gray {
				t.Errorf("gray = %v, want %v", ok, tt.gray)
			}
		})
	}
}
