// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"image"
	"testing"

	"github.com/gogpu/label/geom"
)

// TestNewPath tests path creation and basic operations.
func TestNewPath(t *testing.T) {
	p := NewPath()
	if p == nil {
		t.Fatal("NewPath returned nil")
	}
	if !p.IsEmpty() {
		t.Error("new path should be empty")
	}

	p.MoveTo(10, 20)
	if p.IsEmpty() {
		t.Error("path with MoveTo should not be empty")
	}

	pt := p.CurrentPoint()
	if pt.X != 10 || pt.Y != 20 {
		t.Errorf("CurrentPoint() = (%v, %v), want (10, 20)", pt.X, pt.Y)
	}
}

// TestPathOperations tests all path operations.
func TestPathOperations(t *testing.T) {
	p := NewPath()

	p.MoveTo(0, 0)
	p.LineTo(100, 0)
	p.LineTo(100, 100)
	p.LineTo(0, 100)
	p.Close()

	if len(p.Verbs()) != 5 {
		t.Errorf("expected 5 verbs, got %d", len(p.Verbs()))
	}

	p.Clear()
	p.MoveTo(0, 0)
	p.QuadTo(50, -50, 100, 0)
	p.CubicTo(120, 10, 130, 20, 140, 40)
	var counts []int
	p.Walk(func(v Verb, pts []geom.Point) { counts = append(counts, len(pts)) })
	want := []int{1, 2, 3}
	if len(counts) != len(want) {
		t.Fatalf("Walk visited %d verbs, want %d", len(counts), len(want))
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("verb %d got %d points, want %d", i, counts[i], want[i])
		}
	}
}

func TestPathBoundsAndTransform(t *testing.T) {
	p := NewPath()
	p.Rectangle(10, 20, 30, 40)
	if got, want := p.Bounds(), geom.R(10, 20, 30, 40); got != want {
		t.Errorf("Bounds() = %v, want %v", got, want)
	}
	q := p.Transform(2, geom.Pt(-5, -5))
	if got, want := q.Bounds(), geom.R(15, 35, 60, 80); got != want {
		t.Errorf("transformed Bounds() = %v, want %v", got, want)
	}
	if got := p.Bounds(); got != geom.R(10, 20, 30, 40) {
		t.Error("Transform modified the receiver")
	}
	if !NewPath().Bounds().Empty() {
		t.Error("empty path bounds not empty")
	}
}

func TestUserRect(t *testing.T) {
	s := NewImageSurfaceFrom(image.NewRGBA(image.Rect(0, 0, 20, 10)), 2, image.Pt(40, 60))
	if got, want := UserRect(s), geom.R(20, 30, 10, 5); got != want {
		t.Errorf("UserRect = %v, want %v", got, want)
	}
	if got, want := DeviceRect(geom.R(20, 30, 10, 5), 2, s.Origin()), image.Rect(0, 0, 20, 10); got != want {
		t.Errorf("DeviceRect = %v, want %v", got, want)
	}
}
