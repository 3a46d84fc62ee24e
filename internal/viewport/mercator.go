package viewport

import (
	"math"

	"github.com/paulmach/orb"
)

const webMercatorLatLimit = 85.05112877980659

// Mercator is the spherical web mercator projection onto a pixel world of
// TileSize * 2^zoom pixels per side.
type Mercator struct {
	TileSize int
}

func (p Mercator) scale(zoom int) float64 {
	ts := p.TileSize
	if ts <= 0 {
		ts = 256
	}
	return float64(ts) * math.Exp2(float64(zoom))
}

// Project returns the absolute pixel position of ll at zoom.
func (p Mercator) Project(ll orb.Point, zoom int) orb.Point {
	s := p.scale(zoom)
	lat := math.Max(-webMercatorLatLimit, math.Min(webMercatorLatLimit, ll[1]))
	sin := math.Sin(lat * math.Pi / 180)
	x := (ll[0] + 180) / 360 * s
	y := (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * s
	return orb.Point{x, y}
}

// Unproject is the inverse of Project.
func (p Mercator) Unproject(px orb.Point, zoom int) orb.Point {
	s := p.scale(zoom)
	lng := px[0]/s*360 - 180
	n := math.Pi - 2*math.Pi*px[1]/s
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return orb.Point{lng, lat}
}
