package geom

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/paulmach/orb/geojson"
)

// LoadGeo reads a GeoJSON file. A FeatureCollection, a single Feature and a
// bare geometry are all accepted.
func LoadGeo(path string) (Data, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Data{}, err
	}
	return ParseGeo(data)
}

func ParseGeo(data []byte) (Data, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Data{}, err
	}
	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return Data{}, err
		}
		features = fc.Features
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return Data{}, err
		}
		features = []*geojson.Feature{f}
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return Data{}, err
		}
		features = []*geojson.Feature{geojson.NewFeature(g.Geometry())}
	}
	kept := features[:0]
	for _, f := range features {
		if f != nil && f.Geometry != nil {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return Data{}, errors.New("geojson: no features found")
	}
	return newData(kept), nil
}
