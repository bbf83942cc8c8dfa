// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gogpu/gputypes"
)

// BytesPerPixel returns the storage size of one pixel in format.
// Formats this package cannot allocate report 0.
func BytesPerPixel(format gputypes.TextureFormat) int {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	default:
		return 0
	}
}

// ImageBytes returns the storage size of a size.X × size.Y image.
func ImageBytes(size image.Point, format gputypes.TextureFormat) int64 {
	return int64(size.X) * int64(size.Y) * int64(BytesPerPixel(format))
}

// Alloc allocates pixel storage for format. R8Unorm is backed by
// *image.Gray; both 4-byte formats by *image.RGBA (BGRA is swizzled on
// upload, not in memory). A positive limit caps the allocation size.
//
// Failures wrap ErrAllocationFailed.
func Alloc(size image.Point, format gputypes.TextureFormat, limit int64) (draw.Image, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: invalid size %v", ErrAllocationFailed, size)
	}
	if BytesPerPixel(format) == 0 {
		return nil, fmt.Errorf("%w: unsupported format %v", ErrAllocationFailed, format)
	}
	if n := ImageBytes(size, format); limit > 0 && n > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrAllocationFailed, n, limit)
	}
	r := image.Rectangle{Max: size}
	if format == gputypes.TextureFormatR8Unorm {
		return image.NewGray(r), nil
	}
	return image.NewRGBA(r), nil
}
