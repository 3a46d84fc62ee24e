package geom

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// ParseWKT parses a single WKT geometry.
func ParseWKT(s string) (orb.Geometry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty wkt")
	}
	return wkt.Unmarshal(s)
}

// ParseWKTData parses one WKT geometry per line. Blank lines and lines
// starting with # are skipped. Each geometry becomes a feature whose
// "line" property is its line number.
func ParseWKTData(text string) (Data, error) {
	var features []*geojson.Feature
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := ParseWKT(line)
		if err != nil {
			return Data{}, fmt.Errorf("wkt line %d: %w", n, err)
		}
		f := geojson.NewFeature(g)
		f.Properties["line"] = n
		features = append(features, f)
	}
	if err := sc.Err(); err != nil {
		return Data{}, err
	}
	if len(features) == 0 {
		return Data{}, errors.New("wkt: no geometries parsed")
	}
	return newData(features), nil
}

// FormatWKT renders g as WKT.
func FormatWKT(g orb.Geometry) string {
	return wkt.MarshalString(g)
}
