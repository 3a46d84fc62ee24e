// Package geom loads vector files (GeoJSON, WKT, CSV, KML) into features.
package geom

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Data is what a loader found in a file.
type Data struct {
	Features []*geojson.Feature
	BBox     orb.Bound
}

// Counts returns the number of point, line and polygon features.
func (d Data) Counts() (points, lines, polygons int) {
	for _, f := range d.Features {
		switch f.Geometry.(type) {
		case orb.Point, orb.MultiPoint:
			points++
		case orb.LineString, orb.MultiLineString:
			lines++
		case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
			polygons++
		}
	}
	return points, lines, polygons
}

var ErrUnsupported = errors.New("unsupported file")

// Extensions lists the file extensions Load understands.
var Extensions = []string{".geojson", ".json", ".csv", ".kml", ".wkt"}

// Supported reports whether Load understands the file at path.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Load reads the file at path, picking the loader from its extension.
func Load(path string) (Data, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".geojson", ".json":
		return LoadGeo(path)
	case ".csv":
		return LoadCSV(path)
	case ".kml":
		return LoadKML(path)
	case ".wkt":
		b, err := os.ReadFile(path)
		if err != nil {
			return Data{}, err
		}
		return ParseWKTData(string(b))
	default:
		return Data{}, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
}

func newData(features []*geojson.Feature) Data {
	d := Data{Features: features}
	for i, f := range features {
		if i == 0 {
			d.BBox = f.Geometry.Bound()
			continue
		}
		d.BBox = d.BBox.Union(f.Geometry.Bound())
	}
	return d
}
