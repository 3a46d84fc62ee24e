package layer

import (
	"math"

	"github.com/paulmach/orb"
)

// OpaqueAt samples the drawn tile under ll at the current zoom. known is
// false when that tile is not tracked or has not started drawing; callers
// treat that as not opaque.
func (l *DataLayer) OpaqueAt(ll orb.Point) (opaque, known bool) {
	if l.m == nil {
		return false, false
	}
	z := l.m.Zoom()
	p := l.grid.Project(ll, z)
	return l.OpaqueAtPixel(orb.Point{math.Floor(p[0]), math.Floor(p[1])}, z)
}

// OpaqueAtPixel samples the absolute map pixel px at zoom.
func (l *DataLayer) OpaqueAtPixel(px orb.Point, zoom int) (opaque, known bool) {
	if px[0] < 0 || px[1] < 0 || l.grid.Proj == nil {
		return false, false
	}
	lvl := l.levels[zoom]
	if lvl == nil {
		return false, false
	}
	t := lvl.tiles[l.grid.TileAt(px, zoom)]
	if t == nil || t.Surface == nil {
		return false, false
	}
	lp := l.grid.LocalPixel(px)
	return !t.Surface.IsTransparent(lp.X, lp.Y), true
}
