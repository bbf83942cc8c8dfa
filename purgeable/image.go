package purgeable

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/label/internal/cache"
)

// Key names a cache slot. Owner is chosen by the caller (a frame or
// engine ID); Coord distinguishes images of one owner, such as tiles, and
// Version distinguishes successive renders of one image.
type Key struct {
	Owner   uint64
	Coord   image.Point
	Version uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%d@%d,%d#%d", k.Owner, k.Coord.X, k.Coord.Y, k.Version)
}

// LockState is the result of WithLocked.
type LockState int

const (
	// LockFailed means the image is nil or its cache is closed.
	LockFailed LockState = iota
	// LockedLive means the body ran with the live pixels.
	LockedLive
	// LockedDiscarded means the image was purged and the body did not run.
	LockedDiscarded
)

func (s LockState) String() string {
	switch s {
	case LockFailed:
		return "LockFailed"
	case LockedLive:
		return "LockedLive"
	case LockedDiscarded:
		return "LockedDiscarded"
	default:
		return "Unknown"
	}
}

// Image is a bitmap owned by exactly one cache slot.
//
// All mutable fields are guarded by the owning Cache's mutex.
type Image struct {
	owner  *Cache
	key    Key
	format gputypes.TextureFormat
	size   image.Point
	bytes  int64

	pixels       draw.Image
	locks        int
	purged       bool
	purgePending bool
	registered   bool

	node *cache.Node[*Image]
}

// Key returns the slot the image was created for.
func (img *Image) Key() Key { return img.key }

// Format returns the pixel format.
func (img *Image) Format() gputypes.TextureFormat { return img.format }

// Size returns the image size in device pixels.
func (img *Image) Size() image.Point { return img.size }

// Bytes returns the pixel storage size.
func (img *Image) Bytes() int64 { return img.bytes }

// IsPurged reports whether the image's pixels have been discarded.
func (img *Image) IsPurged() bool {
	img.owner.mu.Lock()
	defer img.owner.mu.Unlock()
	return img.purged
}
