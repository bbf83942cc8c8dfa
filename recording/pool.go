package recording

import (
	"image"
	"image/draw"

	"github.com/gogpu/label/surface"
)

// ResourcePool stores resources referenced by recording commands.
// Resources are stored in slices indexed by their reference types.
// Each Add operation copies mutable resources to ensure immutability.
//
// ResourcePool is not safe for concurrent use. If concurrent access is needed,
// external synchronization must be provided.
type ResourcePool struct {
	paths  []*surface.Path
	images []image.Image
	masks  []*image.Alpha
}

// NewResourcePool creates an empty resource pool with pre-allocated capacity.
func NewResourcePool() *ResourcePool {
	return &ResourcePool{
		paths:  make([]*surface.Path, 0, 64),
		images: make([]image.Image, 0, 8),
		masks:  make([]*image.Alpha, 0, 8),
	}
}

// AddPath adds a copy of path to the pool and returns its reference.
func (p *ResourcePool) AddPath(path *surface.Path) PathRef {
	p.paths = append(p.paths, path.Clone())
	// #nosec G115 -- pool size is bounded by available memory, well under uint32 max
	return PathRef(uint32(len(p.paths) - 1))
}

// GetPath returns the path for the given reference, or nil.
func (p *ResourcePool) GetPath(ref PathRef) *surface.Path {
	if int(ref) >= len(p.paths) {
		return nil
	}
	return p.paths[ref]
}

// AddImage adds a snapshot of img to the pool and returns its reference.
func (p *ResourcePool) AddImage(img image.Image) ImageRef {
	b := img.Bounds()
	cp := image.NewRGBA(image.Rectangle{Max: b.Size()})
	draw.Draw(cp, cp.Bounds(), img, b.Min, draw.Src)
	p.images = append(p.images, cp)
	// #nosec G115 -- pool size is bounded by available memory, well under uint32 max
	return ImageRef(uint32(len(p.images) - 1))
}

// GetImage returns the image for the given reference, or nil.
func (p *ResourcePool) GetImage(ref ImageRef) image.Image {
	if int(ref) >= len(p.images) {
		return nil
	}
	return p.images[ref]
}

// AddMask adds a copy of mask to the pool and returns its reference.
func (p *ResourcePool) AddMask(mask *image.Alpha) MaskRef {
	cp := &image.Alpha{
		Pix:    append([]uint8(nil), mask.Pix...),
		Stride: mask.Stride,
		Rect:   mask.Rect,
	}
	p.masks = append(p.masks, cp)
	// #nosec G115 -- pool size is bounded by available memory, well under uint32 max
	return MaskRef(uint32(len(p.masks) - 1))
}

// GetMask returns the mask for the given reference, or nil.
func (p *ResourcePool) GetMask(ref MaskRef) *image.Alpha {
	if int(ref) >= len(p.masks) {
		return nil
	}
	return p.masks[ref]
}

// PathCount returns the number of paths in the pool.
func (p *ResourcePool) PathCount() int {
	return len(p.paths)
}
