// Package tiled renders large content as a grid of independently cached
// tiles.
//
// The content is divided into square tiles, larger than a screen, in
// device pixels. Tiles under the visible region are rendered synchronously
// by UpdateVisibleRegion; tiles within Config.PrerenderMargin of it are
// prerendered by a worker pool; all others are torn down. Each tile's
// bitmap is a purgeable image, so the system can reclaim tiles that are
// not being composited.
//
// Every render is tagged with the engine epoch current when it was
// scheduled. SetContent and Invalidate advance the epoch and cancel
// in-flight renders; a render that finishes for an old epoch, or for a
// task that was superseded, is released instead of committed.
//
// Tile lifecycle:
//
//	Empty → Pending → Ready
//	Ready → Stale (invalidated) → Pending
//	Pending → Empty (cancelled, dropped or failed)
package tiled

import (
	"context"
	"image"
	"sync"

	"github.com/gogpu/label/purgeable"
)

// State is a tile's lifecycle state.
type State int

const (
	// Empty tiles have no image and no render in flight.
	Empty State = iota
	// Pending tiles have a render in flight.
	Pending
	// Ready tiles hold an image for the current epoch.
	Ready
	// Stale tiles hold an image for an older epoch.
	Stale
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Pending:
		return "Pending"
	case Ready:
		return "Ready"
	case Stale:
		return "Stale"
	default:
		return "Unknown"
	}
}

// Tile is one cell of the grid.
//
// Coord and Rect are fixed at creation. The remaining fields are guarded
// by mu, which also orders commits before composite reads.
type Tile struct {
	// Coord is the tile's column and row.
	Coord image.Point

	// Rect is the tile's extent in global device pixels. Edge tiles may be
	// smaller than the tile size.
	Rect image.Rectangle

	mu         sync.Mutex
	state      State
	generation uint64
	image      *purgeable.Image
	task       uint64
	cancel     context.CancelFunc
}

// TileInfo is a snapshot of a tile.
type TileInfo struct {
	Coord      image.Point
	Rect       image.Rectangle
	State      State
	Generation uint64
}

func (t *Tile) info() TileInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TileInfo{Coord: t.Coord, Rect: t.Rect, State: t.state, Generation: t.generation}
}

// stopLocked cancels the tile's in-flight task, if any, and forgets it.
func (t *Tile) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.task = 0
}
