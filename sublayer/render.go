// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sublayer

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/label/purgeable"
)

// Provider returns the GPU provider the layer was created with, or nil.
func (l *Layer) Provider() gpucontext.DeviceProvider {
	return l.provider
}

// AdapterInfo describes the GPU the layer uploads to. ok is false for
// CPU-only layers.
func (l *Layer) AdapterInfo() (info gpucontext.AdapterInfo, ok bool) {
	if l.provider == nil {
		return gpucontext.AdapterInfo{}, false
	}
	return l.provider.AdapterInfo(), true
}

// RenderTo draws the layer through a gpucontext.TextureDrawer, uploading
// the pixels first if the image or opacity changed since the last call.
//
// Returns error if:
//   - Layer is closed or has no provider or image
//   - The image was purged (ErrDiscarded; regenerate and SetImage)
//   - Texture creation, upload or drawing fails
func (l *Layer) RenderTo(dc gpucontext.TextureDrawer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.closed:
		return ErrLayerClosed
	case l.provider == nil:
		return ErrNilProvider
	case l.img == nil:
		return ErrNoImage
	}

	if l.dirty || l.texture == nil {
		if err := l.uploadLocked(dc); err != nil {
			return err
		}
	}
	return dc.DrawTexture(l.texture, float32(l.at.X), float32(l.at.Y))
}

func (l *Layer) uploadLocked(dc gpucontext.TextureDrawer) error {
	var data []byte
	switch l.images.WithLocked(l.img, func(px draw.Image) {
		data = rgbaBytes(px, l.opacity)
	}) {
	case purgeable.LockedDiscarded:
		return ErrDiscarded
	case purgeable.LockFailed:
		return ErrNoImage
	}
	size := l.img.Size()

	if l.texture != nil && l.texture.Width() == size.X && l.texture.Height() == size.Y {
		if up, ok := l.texture.(gpucontext.TextureUpdater); ok {
			if err := up.UpdateData(data); err != nil {
				return fmt.Errorf("sublayer: update texture: %w", err)
			}
			l.dirty = false
			return nil
		}
	}

	creator := dc.TextureCreator()
	if creator == nil {
		return fmt.Errorf("%w: draw context has no texture creator", ErrTextureCreationFailed)
	}
	tex, err := creator.NewTextureFromRGBA(size.X, size.Y, data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTextureCreationFailed, err)
	}
	// Pixels are premultiplied.
	if pt, ok := tex.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}

	// The texture replaced on the previous upload is no longer sampled.
	destroy(l.oldTexture)
	l.oldTexture = l.texture
	l.texture = tex
	l.dirty = false
	return nil
}

// rgbaBytes converts px to tightly packed premultiplied RGBA scaled by
// opacity.
func rgbaBytes(px image.Image, opacity float64) []byte {
	b := px.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)

	switch src := px.(type) {
	case *image.RGBA:
		for y := range h {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(out[y*w*4:(y+1)*w*4], row[:w*4])
		}
	case *image.Gray:
		// Gray images only back opaque content.
		for y := range h {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := range w {
				g := row[x]
				i := (y*w + x) * 4
				out[i], out[i+1], out[i+2], out[i+3] = g, g, g, 0xff
			}
		}
	default:
		dst := &image.RGBA{Pix: out, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
		draw.Draw(dst, dst.Rect, px, b.Min, draw.Src)
	}

	if opacity < 1 {
		for i, v := range out {
			//nolint:gosec // result is in [0, 255]
			out[i] = uint8(math.Round(float64(v) * opacity))
		}
	}
	return out
}
