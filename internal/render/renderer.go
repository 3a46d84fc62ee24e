package render

import (
	"fmt"
	"image"

	"github.com/gogpu/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"geolayer/internal/geo"
)

// ProjectFunc maps a run of lon/lat points to tile pixels.
type ProjectFunc func([]orb.Point) []image.Point

// GeometryFunc extracts the drawable geometry of a feature.
type GeometryFunc func(f *geojson.Feature) orb.Geometry

// DrawOptions is the per-draw context handed along with every feature.
type DrawOptions struct {
	Tile maptile.Tile
	Map  geo.Projector
}

// Renderer paints features onto one tile surface.
type Renderer struct {
	surface  *Surface
	origin   orb.Point
	bbox     orb.Bound
	project  ProjectFunc
	geometry GeometryFunc
}

// NewRenderer binds a surface to the tile origin, the padded query box and
// the projection for that tile. A nil geometry func reads f.Geometry.
func NewRenderer(s *Surface, origin orb.Point, bbox orb.Bound, project ProjectFunc, geometry GeometryFunc) *Renderer {
	if geometry == nil {
		geometry = func(f *geojson.Feature) orb.Geometry { return f.Geometry }
	}
	return &Renderer{surface: s, origin: origin, bbox: bbox, project: project, geometry: geometry}
}

func (r *Renderer) Origin() orb.Point { return r.origin }
func (r *Renderer) BBox() orb.Bound   { return r.bbox }
func (r *Renderer) Surface() *Surface { return r.surface }

// DrawFeature paints f with style. Features the style hides and unknown
// geometry types draw nothing.
func (r *Renderer) DrawFeature(f *geojson.Feature, style Style, opts DrawOptions) error {
	if f == nil {
		return nil
	}
	sym := style.Symbol(f, int(opts.Tile.Z))
	if !sym.Visible() {
		return nil
	}
	g := r.geometry(f)
	if g == nil {
		return nil
	}
	dc := r.surface.Context()
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.SetFillRule(gg.FillRuleEvenOdd)
	return r.draw(dc, g, sym)
}

func (r *Renderer) draw(dc *gg.Context, g orb.Geometry, sym Symbol) error {
	switch g := g.(type) {
	case orb.Point:
		return r.drawPoints(dc, []orb.Point{g}, sym)
	case orb.MultiPoint:
		return r.drawPoints(dc, g, sym)
	case orb.LineString:
		r.path(dc, g, false)
		return r.stroke(dc, sym)
	case orb.MultiLineString:
		for _, ls := range g {
			r.path(dc, ls, false)
		}
		return r.stroke(dc, sym)
	case orb.Ring:
		r.path(dc, g, true)
		return r.fillStroke(dc, sym)
	case orb.Polygon:
		r.polygon(dc, g)
		return r.fillStroke(dc, sym)
	case orb.MultiPolygon:
		for _, p := range g {
			r.polygon(dc, p)
		}
		return r.fillStroke(dc, sym)
	case orb.Bound:
		r.polygon(dc, g.ToPolygon())
		return r.fillStroke(dc, sym)
	case orb.Collection:
		for _, c := range g {
			if err := r.draw(dc, c, sym); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported geometry %T", g)
	}
}

func (r *Renderer) drawPoints(dc *gg.Context, pts []orb.Point, sym Symbol) error {
	if sym.Radius <= 0 {
		return nil
	}
	for _, p := range r.project(pts) {
		dc.DrawCircle(float64(p.X), float64(p.Y), sym.Radius)
		if err := r.fillStroke(dc, sym); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) polygon(dc *gg.Context, p orb.Polygon) {
	for _, ring := range p {
		r.path(dc, ring, true)
	}
}

func (r *Renderer) path(dc *gg.Context, pts []orb.Point, closed bool) {
	px := r.project(pts)
	if len(px) == 0 {
		return
	}
	dc.MoveTo(float64(px[0].X), float64(px[0].Y))
	for _, p := range px[1:] {
		dc.LineTo(float64(p.X), float64(p.Y))
	}
	if closed {
		dc.ClosePath()
	}
}

func (r *Renderer) stroke(dc *gg.Context, sym Symbol) error {
	if sym.Stroke == "" || sym.LineWidth <= 0 {
		dc.ClearPath()
		return nil
	}
	dc.SetHexColor(sym.Stroke)
	dc.SetLineWidth(sym.LineWidth)
	return dc.Stroke()
}

func (r *Renderer) fillStroke(dc *gg.Context, sym Symbol) error {
	if sym.Fill != "" {
		dc.SetHexColor(sym.Fill)
		if err := dc.FillPreserve(); err != nil {
			return err
		}
	}
	return r.stroke(dc, sym)
}
