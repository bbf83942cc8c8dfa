// Package label renders laid-out text efficiently, however large it is.
//
// # Overview
//
// For every draw request label decides how to turn an immutable
// textframe.Frame into pixels:
//
//   - Direct: draw straight into the presented surface
//   - Image: draw once into a cached purgeable bitmap and composite it
//   - ImageInSublayer: host that bitmap in its own compositing layer
//   - Tiled: split very large content into tiles that are cached and
//     prerendered in the background
//
// # Quick Start
//
//	import "github.com/gogpu/label"
//
//	frame, _ := textframe.BuildString(text, style, textframe.Options{MaxWidth: 400})
//
//	r := label.NewRenderer()
//	defer r.Close()
//
//	dst := surface.NewImageSurface(400, 300)
//	info, err := r.Render(ctx, dst, label.Request{
//	    Frame:  frame,
//	    Range:  frame.FullRange(),
//	    Params: label.ViewportParams{Size: geom.Pt(400, 300)},
//	})
//
// # Architecture
//
// The module is organized into:
//   - label: ComputeRenderInfo, SelectMode and the Renderer that routes
//     requests to a mode
//   - render: DrawRange, the drawing pipeline every mode shares
//   - purgeable: bitmaps whose pixels may be reclaimed under memory
//     pressure and regenerated on demand
//   - tiled: the tile grid, worker pool and scheduling engine
//   - sublayer: a compositing layer hosting one bitmap, CPU or GPU
//   - textframe: the immutable layout result and a builder for it
//   - surface, recording: raster and vector drawing targets
//
// # Coordinate System
//
// User space is in points with the origin at the top-left, Y down. A
// surface's Scale maps points to device pixels. Glyph positions and
// rectangle edges are snapped to the global device pixel grid, so every
// mode produces the same pixels for the same request.
//
// # Cancellation
//
// Every blocking call takes a context.Context. Cancellation is never an
// error: partial work is discarded and never presented.
package label
