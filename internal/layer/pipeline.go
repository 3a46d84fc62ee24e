package layer

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"

	"geolayer/internal/geo"
	"geolayer/internal/provider"
	"geolayer/internal/render"
)

// Tile is the render record of one tile. Surface and Renderer are nil
// until the tile's redraw starts.
type Tile struct {
	Coord    maptile.Tile
	Surface  *render.Surface
	Renderer *render.Renderer
	// Query is the padded box the tile's data was requested for.
	Query orb.Bound
	// Drawn counts the features painted by the last Draw.
	Drawn int

	released bool
}

func (t *Tile) release() {
	t.released = true
	if t.Surface != nil {
		_ = t.Surface.Close()
	}
	t.Surface = nil
	t.Renderer = nil
}

// Released reports whether the tile was evicted or swept.
func (t *Tile) Released() bool { return t.released }

// Pipeline turns a tile coordinate into a drawn surface.
type Pipeline struct {
	Provider   provider.Provider
	Styles     []render.Style
	Grid       geo.Grid
	Resolution float64
	Log        *log.Entry
}

func (p *Pipeline) logger() *log.Entry {
	if p.Log != nil {
		return p.Log
	}
	return log.WithField("component", "pipeline")
}

// Prepare allocates the tile's surface and renderer and computes the
// padded query box. The first style's pad governs the query for all of
// them.
func (p *Pipeline) Prepare(t *Tile) {
	z := int(t.Coord.Z)
	size := p.Grid.TileSize
	s := render.NewSurface(size, p.Resolution)

	bbox := p.Grid.TileBounds(t.Coord)
	origin := geo.TileOrigin(bbox)
	var pad geo.Pad
	if len(p.Styles) > 0 {
		pad = p.Styles[0].TilePad(z)
	}
	query := p.Grid.Expand(z, bbox, pad)

	var geometry render.GeometryFunc
	if p.Provider != nil {
		geometry = p.Provider.Geometry
	}
	t.Surface = s
	t.Renderer = render.NewRenderer(s, origin, query, p.Grid.TileProjector(origin, z), geometry)
	t.Query = query
}

// Draw paints fs onto a prepared tile, style by style. Load errors and
// empty results leave the tile blank. It returns how many features were
// drawn without error.
func (p *Pipeline) Draw(t *Tile, fs provider.FeatureSet, err error) int {
	t.Drawn = 0
	l := p.logger().WithField("tile", t.Coord)
	if err != nil {
		l.Debugf("load data: %v", err)
		return 0
	}
	if fs == nil || fs.Len() == 0 {
		l.Debug("no data")
		return 0
	}
	if t.Renderer == nil {
		return 0
	}
	opts := render.DrawOptions{Tile: t.Coord, Map: p.Grid.Proj}
	n := 0
	for _, style := range p.Styles {
		for _, f := range fs.All() {
			if err := t.Renderer.DrawFeature(f, style, opts); err != nil {
				l.Debugf("draw feature: %v", err)
				continue
			}
			n++
		}
	}
	t.Drawn = n
	return n
}

// Render prepares, loads and draws coord synchronously. The load error is
// returned for the caller to judge; the tile is returned blank alongside it.
func (p *Pipeline) Render(ctx context.Context, coord maptile.Tile) (*Tile, error) {
	t := &Tile{Coord: coord}
	p.Prepare(t)
	if p.Provider == nil {
		return t, nil
	}
	fs, err := p.Provider.LoadData(ctx, provider.Query{BBox: t.Query})
	p.Draw(t, fs, err)
	return t, err
}

// Close releases the tile's surface.
func (t *Tile) Close() error {
	t.release()
	return nil
}
