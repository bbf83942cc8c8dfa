// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render draws a range of a laid-out text frame onto a surface.
//
// DrawRange is the single drawing pipeline shared by every render mode:
// direct drawing into a host surface, drawing into an image that is
// cached and composited later, and drawing into individual tiles. It draws
// in this order:
//
//  1. background fill (when requested)
//  2. run backgrounds
//  3. highlight rectangles
//  4. glyph runs, one batch per run
//  5. underlines and strikethroughs
//  6. the caller's DrawFunc
//
// # Raster and vector targets
//
// On a vector surface glyphs are emitted as filled outline paths in user
// space. On a raster surface glyphs are rasterized at the surface scale
// through a shared GlyphCache keyed by font, glyph, pixel size and a
// quantized subpixel offset, and composited as masks at whole device
// pixels. Rectangles are snapped to the device grid. Content translated by
// a whole number of device pixels therefore produces identical pixels,
// whichever surface it is drawn into.
//
// # Cancellation
//
// The context is polled before each run batch. A cancelled draw returns
// nil and leaves the target partially drawn; callers discard it.
package render
