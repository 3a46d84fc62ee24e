package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileBounds returns the geographic box covered by tile t.
func (g Grid) TileBounds(t maptile.Tile) orb.Bound {
	ts := float64(g.TileSize)
	z := int(t.Z)
	nw := g.Proj.Unproject(orb.Point{float64(t.X) * ts, float64(t.Y) * ts}, z)
	se := g.Proj.Unproject(orb.Point{float64(t.X+1) * ts, float64(t.Y+1) * ts}, z)
	return orb.Bound{
		Min: orb.Point{math.Min(nw[0], se[0]), math.Min(nw[1], se[1])},
		Max: orb.Point{math.Max(nw[0], se[0]), math.Max(nw[1], se[1])},
	}
}

// TileOrigin is the west/north corner of b, the point tile pixels count from.
func TileOrigin(b orb.Bound) orb.Point {
	return orb.Point{b.Min[0], b.Max[1]}
}

// Expand grows b by pad pixels at zoom. Degrees per pixel are taken from the
// tile each corner falls in, so the result follows the projection instead of
// assuming a constant scale.
func (g Grid) Expand(zoom int, b orb.Bound, pad Pad) orb.Bound {
	sw := g.addOffset(zoom, b.Min, -pad.Left, -pad.Bottom)
	ne := g.addOffset(zoom, b.Max, pad.Right, pad.Top)
	return orb.Bound{Min: sw, Max: ne}
}

// PixelsToBBox is the box reaching pad pixels around ll.
func (g Grid) PixelsToBBox(zoom int, ll orb.Point, pad Pad) orb.Bound {
	return g.Expand(zoom, orb.Bound{Min: ll, Max: ll}, pad)
}

// addOffset moves ll by dx pixels east and dy pixels north.
func (g Grid) addOffset(zoom int, ll orb.Point, dx, dy float64) orb.Point {
	p := g.Proj.Project(ll, zoom)
	p = orb.Point{math.Round(p[0]), math.Round(p[1])}
	tb := g.TileBounds(g.TileAt(p, zoom))

	ts := float64(g.TileSize)
	lng := ll[0] + math.Abs(tb.Max[0]-tb.Min[0])*(dx/ts)
	lat := ll[1] + math.Abs(tb.Max[1]-tb.Min[1])*(dy/ts)
	return orb.Point{lng, lat}
}
