// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sublayer

import (
	"errors"
	"image"
	"image/draw"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/label/purgeable"
	"github.com/gogpu/label/surface"
)

// Layer errors.
var (
	// ErrLayerClosed is returned when operating on a closed layer.
	ErrLayerClosed = errors.New("sublayer: layer is closed")

	// ErrNilCache is returned when New is given a nil image cache.
	ErrNilCache = errors.New("sublayer: image cache is nil")

	// ErrNilProvider is returned by RenderTo on a layer without a GPU
	// provider.
	ErrNilProvider = errors.New("sublayer: provider is nil")

	// ErrNoImage is returned by RenderTo when the layer holds no image.
	ErrNoImage = errors.New("sublayer: no image")

	// ErrDiscarded is returned by RenderTo when the image contents were
	// purged. The caller regenerates the image and calls SetImage.
	ErrDiscarded = errors.New("sublayer: image contents discarded")

	// ErrTextureCreationFailed is returned when the GPU texture cannot be
	// created.
	ErrTextureCreationFailed = errors.New("sublayer: texture creation failed")
)

// textureDestroyer matches the Destroy method of GPU textures.
type textureDestroyer interface {
	Destroy()
}

// Layer is a compositing layer backed by one purgeable image.
type Layer struct {
	mu       sync.Mutex
	images   *purgeable.Cache
	provider gpucontext.DeviceProvider

	img     *purgeable.Image
	at      image.Point // global device position of the image
	opacity float64

	texture    gpucontext.Texture
	oldTexture gpucontext.Texture // replaced texture awaiting destruction
	dirty      bool
	closed     bool
}

// New creates an empty layer whose images live in images. provider may be
// nil for CPU-only compositing.
func New(images *purgeable.Cache, provider gpucontext.DeviceProvider) (*Layer, error) {
	if images == nil {
		return nil, ErrNilCache
	}
	return &Layer{
		images:   images,
		provider: provider,
		opacity:  1,
		dirty:    true,
	}, nil
}

// SetImage hands img to the layer, placed at the global device position
// at. The layer releases the image it held before. A nil img clears the
// layer.
func (l *Layer) SetImage(img *purgeable.Image, at image.Point) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		if img != nil {
			l.images.Release(img)
		}
		return ErrLayerClosed
	}
	if l.img != nil && l.img != img {
		l.images.Release(l.img)
	}
	l.img = img
	l.at = at
	l.dirty = true
	return nil
}

// Image returns the held image, or nil.
func (l *Layer) Image() *purgeable.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.img
}

// Position returns the global device position of the image.
func (l *Layer) Position() image.Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.at
}

// SetPosition moves the layer without touching its pixels.
func (l *Layer) SetPosition(at image.Point) {
	l.mu.Lock()
	l.at = at
	l.mu.Unlock()
}

// Opacity returns the layer opacity in [0, 1].
func (l *Layer) Opacity() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opacity
}

// SetOpacity sets the layer opacity, clamped to [0, 1].
func (l *Layer) SetOpacity(a float64) {
	a = min(max(a, 0), 1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if a != l.opacity {
		l.opacity = a
		l.dirty = true
	}
}

// IsDirty reports whether the next RenderTo uploads pixels.
func (l *Layer) IsDirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty || l.texture == nil
}

// Composite draws the layer onto dst. It returns LockFailed when the layer
// holds no image and LockedDiscarded when the image was purged; nothing is
// drawn in either case.
func (l *Layer) Composite(dst surface.Surface) purgeable.LockState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.img == nil {
		return purgeable.LockFailed
	}
	if l.opacity == 0 {
		if l.img.IsPurged() {
			return purgeable.LockedDiscarded
		}
		return purgeable.LockedLive
	}
	opts := &surface.DrawImageOptions{Alpha: l.opacity}
	return l.images.WithLocked(l.img, func(px draw.Image) {
		dst.DrawImage(px, l.at, opts)
	})
}

// Close releases the image and destroys GPU textures. Close is idempotent.
func (l *Layer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.img != nil {
		l.images.Release(l.img)
		l.img = nil
	}
	destroy(l.oldTexture)
	destroy(l.texture)
	l.oldTexture = nil
	l.texture = nil
	return nil
}

func destroy(tex gpucontext.Texture) {
	if d, ok := tex.(textureDestroyer); ok {
		d.Destroy()
	}
}
