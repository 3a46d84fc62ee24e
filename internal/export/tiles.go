// Package export renders tile ranges headlessly and stores the PNGs in an
// MBTiles file, a MySQL table with the MBTiles schema, or a z/x/y tree.
package export

import (
	"iter"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const webMercatorLatLimit = 85.05112877980659

// TileData is one encoded tile on its way to a sink.
type TileData struct {
	Coord maptile.Tile
	Data  []byte
}

// flipY converts an XYZ row into the TMS row MBTiles stores.
func flipY(t maptile.Tile) uint32 {
	return (1 << uint32(t.Z)) - t.Y - 1
}

// tileRange returns the inclusive tile span covering b at zoom.
func tileRange(b orb.Bound, zoom maptile.Zoom) (minX, minY, maxX, maxY uint32) {
	west := math.Max(-180, b.Min[0])
	east := math.Min(180, b.Max[0])
	south := math.Max(-webMercatorLatLimit, b.Min[1])
	north := math.Min(webMercatorLatLimit, b.Max[1])

	n := float64(uint32(1) << uint32(zoom))
	minX, minY = tileIndex(west, north, n)
	maxX, maxY = tileIndex(east, south, n)
	return minX, minY, maxX, maxY
}

func tileIndex(lng, lat, n float64) (x, y uint32) {
	fx := (lng + 180) / 360 * n
	sin := math.Sin(lat * math.Pi / 180)
	fy := (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * n
	clamp := func(v float64) uint32 {
		return uint32(math.Max(0, math.Min(n-1, math.Floor(v))))
	}
	return clamp(fx), clamp(fy)
}

// Tiles yields every tile covering b for each zoom in [minZoom, maxZoom],
// zoom by zoom, column by column.
func Tiles(b orb.Bound, minZoom, maxZoom int) iter.Seq[maptile.Tile] {
	return func(yield func(maptile.Tile) bool) {
		for z := minZoom; z <= maxZoom; z++ {
			zoom := maptile.Zoom(z)
			minX, minY, maxX, maxY := tileRange(b, zoom)
			for x := minX; x <= maxX; x++ {
				for y := minY; y <= maxY; y++ {
					if !yield(maptile.New(x, y, zoom)) {
						return
					}
				}
			}
		}
	}
}

// Count is the number of tiles Tiles yields.
func Count(b orb.Bound, minZoom, maxZoom int) int {
	n := 0
	for z := minZoom; z <= maxZoom; z++ {
		minX, minY, maxX, maxY := tileRange(b, maptile.Zoom(z))
		n += int(maxX-minX+1) * int(maxY-minY+1)
	}
	return n
}
