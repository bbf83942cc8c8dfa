package textframe

import "errors"

var (
	// ErrNilFont is returned when a style has no font.
	ErrNilFont = errors.New("textframe: style has no font")

	// ErrInvalidSize is returned for non-positive or non-finite font sizes.
	ErrInvalidSize = errors.New("textframe: invalid font size")
)
