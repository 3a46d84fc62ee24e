package geom

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlCoords   `xml:"outerBoundaryIs>LinearRing"`
	Inner []kmlCoords `xml:"innerBoundaryIs>LinearRing"`
}

type kmlPlacemark struct {
	Name        string       `xml:"name"`
	Description string       `xml:"description"`
	Point       *kmlCoords   `xml:"Point"`
	LineString  *kmlCoords   `xml:"LineString"`
	Polygon     *kmlPolygon  `xml:"Polygon"`
	Multi       *kmlMultiGeo `xml:"MultiGeometry"`
}

type kmlMultiGeo struct {
	Points      []kmlCoords  `xml:"Point"`
	LineStrings []kmlCoords  `xml:"LineString"`
	Polygons    []kmlPolygon `xml:"Polygon"`
}

// LoadKML extracts placemarks (points, lines, polygons) from a KML file.
// KML coordinates are "lon,lat[,alt]"; altitude is ignored.
func LoadKML(path string) (Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return Data{}, err
	}
	defer f.Close()
	return ParseKML(f)
}

func ParseKML(r io.Reader) (Data, error) {
	var features []*geojson.Feature
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Data{}, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Placemark" {
			continue
		}
		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &se); err != nil {
			return Data{}, err
		}
		g := pm.geometry()
		if g == nil {
			continue
		}
		f := geojson.NewFeature(g)
		if pm.Name != "" {
			f.Properties["name"] = strings.TrimSpace(pm.Name)
		}
		if pm.Description != "" {
			f.Properties["description"] = strings.TrimSpace(pm.Description)
		}
		features = append(features, f)
	}
	if len(features) == 0 {
		return Data{}, errors.New("kml: no placemarks found")
	}
	return newData(features), nil
}

func (pm kmlPlacemark) geometry() orb.Geometry {
	switch {
	case pm.Point != nil:
		if pts := parseKMLCoords(pm.Point.Coordinates); len(pts) > 0 {
			return pts[0]
		}
	case pm.LineString != nil:
		if pts := parseKMLCoords(pm.LineString.Coordinates); len(pts) > 1 {
			return orb.LineString(pts)
		}
	case pm.Polygon != nil:
		return pm.Polygon.polygon()
	case pm.Multi != nil:
		var c orb.Collection
		for _, p := range pm.Multi.Points {
			if pts := parseKMLCoords(p.Coordinates); len(pts) > 0 {
				c = append(c, pts[0])
			}
		}
		for _, l := range pm.Multi.LineStrings {
			if pts := parseKMLCoords(l.Coordinates); len(pts) > 1 {
				c = append(c, orb.LineString(pts))
			}
		}
		for _, p := range pm.Multi.Polygons {
			if poly := p.polygon(); poly != nil {
				c = append(c, poly)
			}
		}
		if len(c) > 0 {
			return c
		}
	}
	return nil
}

func (p kmlPolygon) polygon() orb.Geometry {
	outer := parseKMLCoords(p.Outer.Coordinates)
	if len(outer) < 3 {
		return nil
	}
	poly := orb.Polygon{orb.Ring(outer)}
	for _, in := range p.Inner {
		if pts := parseKMLCoords(in.Coordinates); len(pts) >= 3 {
			poly = append(poly, orb.Ring(pts))
		}
	}
	return poly
}

// parseKMLCoords reads whitespace separated "lon,lat[,alt]" tuples.
func parseKMLCoords(s string) []orb.Point {
	var pts []orb.Point
	for _, tuple := range strings.Fields(s) {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(vals[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts
}
