package tui

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	table "github.com/charmbracelet/bubbles/table"
	"github.com/paulmach/orb/geojson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/exp/constraints"

	"geolayer/internal/provider"
)

const (
	maxColWidth = 24
	maxAttrRows = 500
)

// refreshAttrs loads the features in view and rebuilds the table from them.
func (m *Model) refreshAttrs() {
	m.status = "loading attributes"
	m.layer.LoadData(m.ctx, m.vmap.Bounds(), func(fs provider.FeatureSet, err error) {
		if err != nil {
			m.showAttrs = false
			m.status = "attributes: " + err.Error()
			return
		}
		m.setAttrs(provider.Collect(fs))
	})
}

func (m *Model) setAttrs(features []*geojson.Feature) {
	cols, rows := buildAttributes(features)
	if len(cols) == 0 || len(rows) == 0 {
		m.showAttrs = false
		m.status = "no attributes in view"
		return
	}
	tcols := make([]table.Column, 0, len(cols)+1)
	tcols = append(tcols, table.Column{Title: "#", Width: 4})
	for _, c := range cols {
		tcols = append(tcols, table.Column{Title: c, Width: clamp(len(c)+2, 6, maxColWidth)})
	}
	trows := make([]table.Row, 0, len(rows))
	for i, r := range rows {
		trows = append(trows, table.Row(append([]string{strconv.Itoa(i + 1)}, r...)))
	}
	// Clear rows first so the table never sees rows wider than its columns.
	m.tbl.SetRows(nil)
	m.tbl.SetColumns(tcols)
	m.tbl.SetRows(trows)
	m.status = fmt.Sprintf("attributes: %d features in view", len(rows))
}

// buildAttributes unions the property keys of features in first-seen
// order; each feature's own keys are taken sorted.
func buildAttributes(features []*geojson.Feature) ([]string, [][]string) {
	if len(features) > maxAttrRows {
		features = features[:maxAttrRows]
	}
	cols := orderedmap.New[string, int]()
	for _, f := range features {
		for _, k := range sortedKeys(f.Properties) {
			if _, ok := cols.Get(k); !ok {
				cols.Set(k, cols.Len())
			}
		}
	}
	if cols.Len() == 0 {
		return nil, nil
	}
	names := make([]string, 0, cols.Len())
	for p := cols.Oldest(); p != nil; p = p.Next() {
		names = append(names, p.Key)
	}
	rows := make([][]string, 0, len(features))
	for _, f := range features {
		row := make([]string, cols.Len())
		for k, v := range f.Properties {
			if i, ok := cols.Get(k); ok {
				row[i] = formatValue(v)
			}
		}
		rows = append(rows, row)
	}
	return names, rows
}

func sortedKeys(props geojson.Properties) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		bs, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(bs)
	}
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	return max(lo, min(hi, v))
}
