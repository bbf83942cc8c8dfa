package textframe

import "github.com/gogpu/label/geom"

// SegmentOp is the kind of an outline segment.
type SegmentOp uint8

const (
	// OpMoveTo starts a new contour at Args[0].
	OpMoveTo SegmentOp = iota
	// OpLineTo draws a line to Args[0].
	OpLineTo
	// OpQuadTo draws a quadratic curve through control Args[0] to Args[1].
	OpQuadTo
	// OpCubeTo draws a cubic curve through Args[0] and Args[1] to Args[2].
	OpCubeTo
)

func (op SegmentOp) nargs() int {
	switch op {
	case OpQuadTo:
		return 2
	case OpCubeTo:
		return 3
	default:
		return 1
	}
}

// NArgs returns how many points of Segment.Args the op uses.
func (op SegmentOp) NArgs() int { return op.nargs() }

// Segment is one outline command. Coordinates are y-down.
type Segment struct {
	Op   SegmentOp
	Args [3]geom.Point
}

// Outline is a glyph outline normalized to a one-point em, relative to the
// glyph origin on the baseline.
type Outline struct {
	Segments []Segment
	Bounds   geom.Rect
}

// IsEmpty reports whether the glyph draws nothing.
func (o *Outline) IsEmpty() bool {
	return o == nil || len(o.Segments) == 0
}
