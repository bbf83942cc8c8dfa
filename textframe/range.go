package textframe

import "fmt"

// Range is a half-open range of rune indices into a Frame's text.
type Range struct {
	Start, End int
}

// Len returns the number of runes in the range.
func (r Range) Len() int { return r.End - r.Start }

// IsEmpty reports whether the range contains no runes.
func (r Range) IsEmpty() bool { return r.End <= r.Start }

// Contains reports whether rune index i lies in the range.
func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End }

// Intersect returns the overlap of r and s.
func (r Range) Intersect(s Range) Range {
	out := Range{Start: max(r.Start, s.Start), End: min(r.End, s.End)}
	if out.End < out.Start {
		out.End = out.Start
	}
	return out
}

// Overlaps reports whether r and s share at least one rune.
func (r Range) Overlaps(s Range) bool {
	return !r.Intersect(s).IsEmpty()
}

// Validate panics unless r is a well-formed subrange of [0, n].
// Invalid ranges are programming errors, not runtime conditions.
func (r Range) Validate(n int) {
	if r.Start < 0 || r.End < r.Start || r.End > n {
		panic(fmt.Sprintf("textframe: invalid range [%d, %d) for text of length %d", r.Start, r.End, n))
	}
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}
