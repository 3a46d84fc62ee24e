package tui

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geolayer/internal/geo"
	"geolayer/internal/render"
)

type geomKind int

const (
	kindPoint geomKind = iota
	kindLine
	kindPolygon
)

func (k geomKind) String() string {
	return [...]string{"points", "lines", "polygons"}[k]
}

func kindOf(g orb.Geometry) (geomKind, bool) {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return kindPoint, true
	case orb.LineString, orb.MultiLineString:
		return kindLine, true
	case orb.Ring, orb.Polygon, orb.MultiPolygon, orb.Bound:
		return kindPolygon, true
	}
	return 0, false
}

// visibility hides whole geometry kinds from every wrapped style.
type visibility struct {
	hidden [3]bool
}

func (v *visibility) toggle(k geomKind) bool {
	v.hidden[k] = !v.hidden[k]
	return !v.hidden[k]
}

func (v *visibility) allVisible() bool {
	return !v.hidden[kindPoint] && !v.hidden[kindLine] && !v.hidden[kindPolygon]
}

func (v *visibility) setAll(show bool) {
	for i := range v.hidden {
		v.hidden[i] = !show
	}
}

func (v *visibility) shows(g orb.Geometry) bool {
	if c, ok := g.(orb.Collection); ok {
		for _, part := range c {
			if v.shows(part) {
				return true
			}
		}
		return false
	}
	k, ok := kindOf(g)
	return !ok || !v.hidden[k]
}

// toggledStyle defers to its inner style for features whose geometry kind
// is visible.
type toggledStyle struct {
	render.Style
	vis *visibility
}

func (s toggledStyle) Symbol(f *geojson.Feature, zoom int) render.Symbol {
	if f == nil || !s.vis.shows(f.Geometry) {
		return render.Symbol{}
	}
	return s.Style.Symbol(f, zoom)
}

func (s toggledStyle) TilePad(zoom int) geo.Pad { return s.Style.TilePad(zoom) }

func wrapStyles(styles []render.Style, vis *visibility) []render.Style {
	out := make([]render.Style, len(styles))
	for i, s := range styles {
		out[i] = toggledStyle{Style: s, vis: vis}
	}
	return out
}
