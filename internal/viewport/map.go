// Package viewport is a small pan/zoom map host. It owns the projection,
// tells tile sources which tiles are visible and turns pointer input into
// events. It is driven from a single loop and does no locking.
package viewport

import (
	"image"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/umpc/go-sortedmap"
)

// Layer is anything that can be put on a map.
type Layer interface {
	OnAdd(m *Map)
	OnRemove(m *Map)
}

// TileSource is a layer drawn tile by tile. The map calls CreateTile for
// every tile that becomes visible and RemoveTile once it is out of view.
type TileSource interface {
	Layer
	TileSize() int
	CreateTile(t maptile.Tile)
	RemoveTile(t maptile.Tile)
}

type Options struct {
	TileSize int
	MinZoom  int
	MaxZoom  int
}

type Map struct {
	Evented
	Mercator

	minZoom int
	maxZoom int
	zoom    int
	center  orb.Point
	size    image.Point
	cursor  string

	layers []Layer
	tiles  map[TileSource]map[maptile.Tile]struct{}
}

func New(opts Options) *Map {
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = 22
	}
	return &Map{
		Mercator: Mercator{TileSize: opts.TileSize},
		minZoom:  opts.MinZoom,
		maxZoom:  opts.MaxZoom,
		zoom:     opts.MinZoom,
		cursor:   "auto",
		tiles:    make(map[TileSource]map[maptile.Tile]struct{}),
	}
}

func (m *Map) Zoom() int         { return m.zoom }
func (m *Map) Center() orb.Point { return m.center }
func (m *Map) Size() image.Point { return m.size }
func (m *Map) MinZoom() int      { return m.minZoom }
func (m *Map) MaxZoom() int      { return m.maxZoom }

// Cursor is the pointer style layers asked for on the map container.
func (m *Map) Cursor() string     { return m.cursor }
func (m *Map) SetCursor(c string) { m.cursor = c }

// SetSize resizes the container in pixels.
func (m *Map) SetSize(w, h int) {
	m.size = image.Pt(w, h)
	m.update()
	m.Fire(EventResize, &Event{Map: m})
}

// SetView moves the map to center at zoom. A zoom change is wrapped in
// zoomstart and zoomend events.
func (m *Map) SetView(center orb.Point, zoom int) {
	zoom = max(m.minZoom, min(m.maxZoom, zoom))
	zoomChanged := zoom != m.zoom
	if zoomChanged {
		m.Fire(EventZoomStart, &Event{Map: m})
	}
	m.center = center
	m.zoom = zoom
	m.update()
	if zoomChanged {
		m.Fire(EventZoomEnd, &Event{Map: m})
	}
	m.Fire(EventMoveEnd, &Event{Map: m})
}

func (m *Map) SetZoom(zoom int) { m.SetView(m.center, zoom) }
func (m *Map) ZoomIn()          { m.SetZoom(m.zoom + 1) }
func (m *Map) ZoomOut()         { m.SetZoom(m.zoom - 1) }

// ZoomAround changes zoom while keeping the geographic point under the
// container point pt in place.
func (m *Map) ZoomAround(pt image.Point, zoom int) {
	zoom = max(m.minZoom, min(m.maxZoom, zoom))
	ll := m.ContainerPointToLatLng(pt)
	p := m.Project(ll, zoom)
	half := orb.Point{float64(m.size.X) / 2, float64(m.size.Y) / 2}
	c := orb.Point{p[0] - float64(pt.X) + half[0], p[1] - float64(pt.Y) + half[1]}
	m.SetView(m.Unproject(c, zoom), zoom)
}

// PanBy shifts the view by dx, dy container pixels.
func (m *Map) PanBy(dx, dy int) {
	c := m.Project(m.center, m.zoom)
	m.center = m.Unproject(orb.Point{c[0] + float64(dx), c[1] + float64(dy)}, m.zoom)
	m.update()
	m.Fire(EventMoveEnd, &Event{Map: m})
}

// FitBounds centers the view on b at the largest zoom that shows all of it.
func (m *Map) FitBounds(b orb.Bound) {
	zoom := m.maxZoom
	for ; zoom > m.minZoom; zoom-- {
		sw := m.Project(b.Min, zoom)
		ne := m.Project(b.Max, zoom)
		if math.Abs(ne[0]-sw[0]) <= float64(m.size.X) && math.Abs(sw[1]-ne[1]) <= float64(m.size.Y) {
			break
		}
	}
	m.SetView(b.Center(), zoom)
}

// PixelOrigin is the absolute pixel of the container's top-left corner.
func (m *Map) PixelOrigin() orb.Point {
	c := m.Project(m.center, m.zoom)
	return orb.Point{
		math.Round(c[0] - float64(m.size.X)/2),
		math.Round(c[1] - float64(m.size.Y)/2),
	}
}

func (m *Map) ContainerPointToLatLng(pt image.Point) orb.Point {
	o := m.PixelOrigin()
	return m.Unproject(orb.Point{o[0] + float64(pt.X), o[1] + float64(pt.Y)}, m.zoom)
}

func (m *Map) LatLngToContainerPoint(ll orb.Point) image.Point {
	o := m.PixelOrigin()
	p := m.Project(ll, m.zoom)
	return image.Pt(int(math.Floor(p[0]-o[0])), int(math.Floor(p[1]-o[1])))
}

// Bounds is the geographic box the container shows.
func (m *Map) Bounds() orb.Bound {
	nw := m.ContainerPointToLatLng(image.Pt(0, 0))
	se := m.ContainerPointToLatLng(m.size)
	return orb.Bound{Min: orb.Point{nw[0], se[1]}, Max: orb.Point{se[0], nw[1]}}
}

// MouseMove reports the pointer at container point pt.
func (m *Map) MouseMove(pt image.Point) {
	m.Fire(EventMouseMove, &Event{Map: m, ContainerPoint: pt, LatLng: m.ContainerPointToLatLng(pt)})
}

// Click reports a click at container point pt.
func (m *Map) Click(pt image.Point) {
	m.Fire(EventClick, &Event{Map: m, ContainerPoint: pt, LatLng: m.ContainerPointToLatLng(pt)})
}

func (m *Map) HasLayer(l Layer) bool {
	for _, x := range m.layers {
		if x == l {
			return true
		}
	}
	return false
}

func (m *Map) AddLayer(l Layer) {
	if m.HasLayer(l) {
		return
	}
	m.layers = append(m.layers, l)
	l.OnAdd(m)
	if ts, ok := l.(TileSource); ok {
		m.tiles[ts] = make(map[maptile.Tile]struct{})
		m.updateSource(ts)
	}
}

func (m *Map) RemoveLayer(l Layer) {
	for i, x := range m.layers {
		if x != l {
			continue
		}
		m.layers = append(m.layers[:i:i], m.layers[i+1:]...)
		if ts, ok := l.(TileSource); ok {
			for t := range m.tiles[ts] {
				ts.RemoveTile(t)
			}
			delete(m.tiles, ts)
		}
		l.OnRemove(m)
		return
	}
}

// ActiveTiles lists the tiles the map currently holds for ts.
func (m *Map) ActiveTiles(ts TileSource) []maptile.Tile {
	out := make([]maptile.Tile, 0, len(m.tiles[ts]))
	for t := range m.tiles[ts] {
		out = append(out, t)
	}
	return out
}

func (m *Map) update() {
	for _, l := range m.layers {
		if ts, ok := l.(TileSource); ok {
			m.updateSource(ts)
		}
	}
}

type tileRank struct {
	dist float64
	x, y uint32
}

// updateSource evicts tiles that left the view and creates the newly
// visible ones, nearest to the center first.
func (m *Map) updateSource(ts TileSource) {
	active := m.tiles[ts]
	wanted := m.visibleTiles(ts.TileSize())

	for t := range active {
		if _, ok := wanted[t]; !ok {
			delete(active, t)
			ts.RemoveTile(t)
		}
	}

	size := float64(ts.TileSize())
	c := m.Project(m.center, m.zoom)
	cx, cy := c[0]/size-0.5, c[1]/size-0.5
	queue := sortedmap.New(len(wanted), func(a, b interface{}) bool {
		ra, rb := a.(tileRank), b.(tileRank)
		if ra.dist != rb.dist {
			return ra.dist < rb.dist
		}
		if ra.y != rb.y {
			return ra.y < rb.y
		}
		return ra.x < rb.x
	})
	for t := range wanted {
		if _, ok := active[t]; ok {
			continue
		}
		dx, dy := float64(t.X)-cx, float64(t.Y)-cy
		queue.Insert(t, tileRank{dist: dx*dx + dy*dy, x: t.X, y: t.Y})
	}
	for _, k := range queue.Keys() {
		t := k.(maptile.Tile)
		active[t] = struct{}{}
		ts.CreateTile(t)
	}
}

func (m *Map) visibleTiles(tileSize int) map[maptile.Tile]struct{} {
	out := make(map[maptile.Tile]struct{})
	if m.size.X <= 0 || m.size.Y <= 0 {
		return out
	}
	if tileSize <= 0 {
		tileSize = 256
	}
	ts := float64(tileSize)
	o := m.PixelOrigin()
	n := int(m.scale(m.zoom)/ts) - 1
	x0 := max(0, int(math.Floor(o[0]/ts)))
	y0 := max(0, int(math.Floor(o[1]/ts)))
	x1 := min(n, int(math.Floor((o[0]+float64(m.size.X)-1)/ts)))
	y1 := min(n, int(math.Floor((o[1]+float64(m.size.Y)-1)/ts)))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			out[maptile.New(uint32(x), uint32(y), maptile.Zoom(m.zoom))] = struct{}{}
		}
	}
	return out
}
