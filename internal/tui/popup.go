package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geolayer/internal/geom"
	"geolayer/internal/viewport"
)

const (
	popupWidth    = 44
	popupMaxLines = 14
)

type popupContent struct {
	anchor orb.Point
	text   string
}

// openPopup is bound to the data layer: it fires after a click on drawn
// content or an inspect request.
func (m *Model) openPopup(_ *viewport.Map, ll orb.Point, f *geojson.Feature) {
	m.popup = &popupContent{anchor: ll, text: m.describe(ll, f)}
	if f == nil {
		m.status = "no feature nearby"
		return
	}
	m.status = "popup"
}

func (m *Model) describe(ll orb.Point, f *geojson.Feature) string {
	name := filepath.Base(m.selPath)
	if m.selPath == "" {
		name = "<pasted>"
	}
	lines := []string{
		fmt.Sprintf("source: %s", name),
		fmt.Sprintf("at: lon=%.6f lat=%.6f", ll[0], ll[1]),
	}
	if f == nil {
		lines = append(lines, "no feature nearby")
		return wrap(lines)
	}
	lines = append(lines, fmt.Sprintf("type: %s", f.Geometry.GeoJSONType()))
	b := f.Geometry.Bound()
	lines = append(lines, fmt.Sprintf("bbox: [%.5f, %.5f, %.5f, %.5f]", b.Min[0], b.Min[1], b.Max[0], b.Max[1]))
	for _, k := range sortedKeys(f.Properties) {
		lines = append(lines, fmt.Sprintf("%s: %s", k, formatValue(f.Properties[k])))
	}
	lines = append(lines, "wkt: "+truncate.StringWithTail(geom.FormatWKT(f.Geometry), popupWidth*2, "…"))
	return wrap(lines)
}

func wrap(lines []string) string {
	out := wordwrap.String(strings.Join(lines, "\n"), popupWidth)
	rows := strings.Split(out, "\n")
	if len(rows) > popupMaxLines {
		rows = append(rows[:popupMaxLines-1], "…")
	}
	for i, r := range rows {
		rows[i] = truncate.StringWithTail(r, popupWidth, "…")
	}
	return strings.Join(rows, "\n")
}
