// Package geo holds the coordinate and bounding box math shared by the tile
// pipeline: placing lon/lat points inside a tile's pixel space and growing
// query boxes by pixel pads.
package geo

import (
	"image"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// DefaultTileSize is the edge of a tile in pixels.
const DefaultTileSize = 256

// Projector is the part of the host viewport the math needs: absolute pixel
// positions of lon/lat points at a zoom level, and back.
type Projector interface {
	Project(ll orb.Point, zoom int) orb.Point
	Unproject(px orb.Point, zoom int) orb.Point
}

// Grid ties a projector to a tile size.
type Grid struct {
	Proj     Projector
	TileSize int
}

// NewGrid returns a grid over p. A non-positive size falls back to DefaultTileSize.
func NewGrid(p Projector, tileSize int) Grid {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	return Grid{Proj: p, TileSize: tileSize}
}

// Project maps a lon/lat point to absolute viewport pixels at zoom.
func (g Grid) Project(ll orb.Point, zoom int) orb.Point {
	return g.Proj.Project(ll, zoom)
}

// TileLocalDelta is the integer pixel offset of pt from origin at zoom.
// Each axis is rounded on its own, half up, so drawn output stays
// pixel-identical across hosts.
func (g Grid) TileLocalDelta(origin, pt orb.Point, zoom int) image.Point {
	o := g.Proj.Project(origin, zoom)
	p := g.Proj.Project(pt, zoom)
	return image.Pt(roundHalfUp(p[0]-o[0]), roundHalfUp(p[1]-o[1]))
}

// TileProjector returns a function projecting coordinate runs into the
// pixel space of a tile whose top-left corner is origin.
func (g Grid) TileProjector(origin orb.Point, zoom int) func([]orb.Point) []image.Point {
	o := g.Proj.Project(origin, zoom)
	return func(pts []orb.Point) []image.Point {
		out := make([]image.Point, len(pts))
		for i, pt := range pts {
			p := g.Proj.Project(pt, zoom)
			out[i] = image.Pt(roundHalfUp(p[0]-o[0]), roundHalfUp(p[1]-o[1]))
		}
		return out
	}
}

// TileAt returns the tile containing the absolute pixel px at zoom.
// Pixels left of or above the world are clamped into tile 0.
func (g Grid) TileAt(px orb.Point, zoom int) maptile.Tile {
	ts := float64(g.TileSize)
	x := math.Floor(px[0] / ts)
	y := math.Floor(px[1] / ts)
	return maptile.New(clampIndex(x), clampIndex(y), maptile.Zoom(zoom))
}

// LocalPixel returns px relative to the top-left of its tile.
func (g Grid) LocalPixel(px orb.Point) image.Point {
	x := int(math.Floor(px[0]))
	y := int(math.Floor(px[1]))
	return image.Pt(mod(x, g.TileSize), mod(y, g.TileSize))
}

// roundHalfUp rounds the way canvas hosts do: -2.5 becomes -2, 2.5 becomes 3.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clampIndex(v float64) uint32 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

func mod(v, n int) int {
	r := v % n
	if r < 0 {
		r += n
	}
	return r
}
