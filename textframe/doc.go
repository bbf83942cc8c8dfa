// Package textframe provides the immutable layout result consumed by the
// renderer: a Frame of positioned glyph runs, plus the Builder that
// produces one.
//
// A Frame is never mutated after Build returns and may be shared freely
// between goroutines. Its identity (Frame.ID) rather than its content is
// what caches key on.
//
// Shaping uses go-text/typesetting's HarfBuzz port, paragraph direction
// comes from golang.org/x/text/unicode/bidi, and glyph outlines are read
// with golang.org/x/image/font/sfnt.
//
//	f, _ := textframe.ParseFont(goregular.TTF)
//	frame, _ := textframe.BuildString("Hello", textframe.Style{Font: f, Size: 16}, textframe.Options{})
package textframe
