package tiled

import "image"

// Grid is a flat arena of tiles covering a device-pixel rectangle.
// Tiles are stored row-major: index = y*cols + x.
//
// Grid is immutable after creation; tile contents are guarded by each
// tile's own lock.
type Grid struct {
	tiles  []Tile
	cols   int
	rows   int
	size   int
	bounds image.Rectangle
}

// NewGrid divides bounds into size×size tiles anchored at bounds.Min.
// Edge tiles are clipped to bounds.
func NewGrid(bounds image.Rectangle, size int) *Grid {
	if size <= 0 {
		panic("tiled: non-positive tile size")
	}
	g := &Grid{size: size, bounds: bounds}
	if bounds.Empty() {
		return g
	}
	g.cols = (bounds.Dx() + size - 1) / size
	g.rows = (bounds.Dy() + size - 1) / size
	g.tiles = make([]Tile, g.cols*g.rows)
	for y := range g.rows {
		for x := range g.cols {
			t := &g.tiles[y*g.cols+x]
			t.Coord = image.Pt(x, y)
			p := bounds.Min.Add(image.Pt(x*size, y*size))
			t.Rect = image.Rectangle{Min: p, Max: p.Add(image.Pt(size, size))}.Intersect(bounds)
		}
	}
	return g
}

// TileAt returns the tile at c, or nil if c is outside the grid.
func (g *Grid) TileAt(c image.Point) *Tile {
	if c.X < 0 || c.X >= g.cols || c.Y < 0 || c.Y >= g.rows {
		return nil
	}
	return &g.tiles[c.Y*g.cols+c.X]
}

// TilesIn returns the tiles intersecting r, in row-major order.
func (g *Grid) TilesIn(r image.Rectangle) []*Tile {
	r = r.Intersect(g.bounds)
	if r.Empty() {
		return nil
	}
	r = r.Sub(g.bounds.Min)
	x0, y0 := r.Min.X/g.size, r.Min.Y/g.size
	x1, y1 := (r.Max.X-1)/g.size, (r.Max.Y-1)/g.size

	out := make([]*Tile, 0, (x1-x0+1)*(y1-y0+1))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			out = append(out, &g.tiles[y*g.cols+x])
		}
	}
	return out
}

// ForEach calls fn for each tile in row-major order.
func (g *Grid) ForEach(fn func(t *Tile)) {
	for i := range g.tiles {
		fn(&g.tiles[i])
	}
}

// Len returns the number of tiles.
func (g *Grid) Len() int { return len(g.tiles) }

// Cols returns the number of tile columns.
func (g *Grid) Cols() int { return g.cols }

// Rows returns the number of tile rows.
func (g *Grid) Rows() int { return g.rows }

// TileSize returns the nominal tile edge in device pixels.
func (g *Grid) TileSize() int { return g.size }

// Bounds returns the covered device-pixel rectangle.
func (g *Grid) Bounds() image.Rectangle { return g.bounds }
