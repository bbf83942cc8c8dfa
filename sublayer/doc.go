// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package sublayer hosts one rendered text image in its own compositing
// layer.
//
// A Layer owns a purgeable image and composites it with a position and an
// opacity, so the host can cross-fade or animate the text without
// re-rasterizing it. The data flow is:
//
//	render.DrawRange -> purgeable.Image (CPU) -> Composite / GPU texture
//
// # CPU compositing
//
// Composite draws the image onto any surface.Surface. It reports the
// purgeable lock state so the caller can regenerate discarded content:
//
//	if layer.Composite(dst) == purgeable.LockedDiscarded {
//	    // re-render and SetImage
//	}
//
// # GPU compositing
//
// When the layer is created with a gpucontext.DeviceProvider, RenderTo
// uploads the pixels into a texture and draws it through a
// gpucontext.TextureDrawer:
//
//	layer, _ := sublayer.New(images, app.GPUContextProvider())
//	app.OnDraw(func(dc *gogpu.Context) {
//	    layer.RenderTo(dc.AsTextureDrawer())
//	})
//
// Textures are uploaded lazily and only when the image or opacity
// changed. A replaced texture is destroyed on the next upload, after the
// GPU is done sampling it.
//
// # Thread Safety
//
// Layer is safe for concurrent use.
package sublayer
