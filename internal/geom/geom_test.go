package geom

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []orb.Geometry
	}{
		{
			name: "collection",
			input: `{"type":"FeatureCollection","features":[
				{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Point","coordinates":[1,2]}},
				{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[3,4]]}}]}`,
			want: []orb.Geometry{orb.Point{1, 2}, orb.LineString{{0, 0}, {3, 4}}},
		},
		{
			name:  "feature",
			input: `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[5,6]}}`,
			want:  []orb.Geometry{orb.Point{5, 6}},
		},
		{
			name:  "bare geometry",
			input: `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`,
			want:  []orb.Geometry{orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseGeo([]byte(tt.input))
			require.NoError(t, err)
			require.Len(t, d.Features, len(tt.want))
			for i, g := range tt.want {
				assert.Equal(t, g, d.Features[i].Geometry)
			}
		})
	}

	_, err := ParseGeo([]byte(`{"type":"FeatureCollection","features":[]}`))
	assert.Error(t, err)
	_, err = ParseGeo([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseWKTData(t *testing.T) {
	d, err := ParseWKTData("POINT (1 2)\n\n# comment\nLINESTRING (0 0, 10 10)\nPOLYGON ((0 0, 4 0, 4 4, 0 0))\n")
	require.NoError(t, err)
	require.Len(t, d.Features, 3)
	assert.Equal(t, orb.Point{1, 2}, d.Features[0].Geometry)
	assert.Equal(t, 4, d.Features[1].Properties["line"])
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}, d.BBox)

	p, l, poly := d.Counts()
	assert.Equal(t, [3]int{1, 1, 1}, [3]int{p, l, poly})

	_, err = ParseWKTData("POINT (1 2)\nBOGUS (1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseWKTData("  \n")
	assert.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	d, err := ParseCSV(strings.NewReader("name,Latitude,lon,kind\nfoo,52.5,13.4,cafe\nbar,bad,1,x\nbaz,1,2,shop\n"))
	require.NoError(t, err)
	require.Len(t, d.Features, 2)
	assert.Equal(t, orb.Point{13.4, 52.5}, d.Features[0].Geometry)
	assert.Equal(t, "foo", d.Features[0].Properties["name"])
	assert.Equal(t, "cafe", d.Features[0].Properties["kind"])
	assert.NotContains(t, d.Features[0].Properties, "lon")

	_, err = ParseCSV(strings.NewReader("a,b\n1,2\n"))
	assert.Error(t, err)
}

func TestParseKML(t *testing.T) {
	doc := `<?xml version="1.0"?>
<kml><Document><Folder>
  <Placemark><name>Pin</name><Point><coordinates>13.4,52.5,0</coordinates></Point></Placemark>
  <Placemark><name>Path</name><LineString><coordinates>0,0 1,1 2,0</coordinates></LineString></Placemark>
  <Placemark><Polygon>
    <outerBoundaryIs><LinearRing><coordinates>0,0 4,0 4,4 0,4 0,0</coordinates></LinearRing></outerBoundaryIs>
    <innerBoundaryIs><LinearRing><coordinates>1,1 2,1 2,2 1,1</coordinates></LinearRing></innerBoundaryIs>
  </Polygon></Placemark>
  <Placemark><name>Empty</name></Placemark>
</Folder></Document></kml>`
	d, err := ParseKML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, d.Features, 3)
	assert.Equal(t, orb.Point{13.4, 52.5}, d.Features[0].Geometry)
	assert.Equal(t, "Pin", d.Features[0].Properties["name"])
	assert.Equal(t, orb.LineString{{0, 0}, {1, 1}, {2, 0}}, d.Features[1].Geometry)
	poly, ok := d.Features[2].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, poly, 2)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	d, err := Load(write("a.WKT", "POINT (1 1)"))
	require.NoError(t, err)
	assert.Len(t, d.Features, 1)

	d, err = Load(write("b.geojson", `{"type":"Point","coordinates":[1,1]}`))
	require.NoError(t, err)
	assert.Len(t, d.Features, 1)

	_, err = Load(write("c.shp", ""))
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.True(t, Supported("x.kml"))
	assert.False(t, Supported("x.shp"))
}
