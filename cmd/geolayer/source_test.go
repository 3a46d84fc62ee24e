package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geolayer/internal/config"
	"geolayer/internal/export"
	"geolayer/internal/provider"
)

const pointsJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Point","coordinates":[1,2]}},
{"type":"Feature","properties":{"name":"b"},"geometry":{"type":"Point","coordinates":[3,4]}}]}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestParseBBox(t *testing.T) {
	b, err := parseBBox("-10, -5,10,5")
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{Min: orb.Point{-10, -5}, Max: orb.Point{10, 5}}, b)

	for _, s := range []string{"1,2,3", "a,b,c,d", "10,0,-10,5"} {
		_, err := parseBBox(s)
		assert.Error(t, err, s)
	}
}

func TestOpenSourceMemory(t *testing.T) {
	cfg, err := config.Parse("")
	require.NoError(t, err)

	src, err := openSource(context.Background(), cfg, []string{writeFile(t, "pts.geojson", pointsJSON)})
	require.NoError(t, err)
	defer src.Close()

	require.True(t, src.HasBounds)
	assert.Equal(t, orb.Bound{Min: orb.Point{1, 2}, Max: orb.Point{3, 4}}, src.Bounds)
	assert.IsType(t, &provider.Memory{}, src.Provider)

	_, err = openSource(context.Background(), cfg, []string{writeFile(t, "bad.geojson", "{")})
	assert.Error(t, err)
}

func TestOpenSourceSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	db, err := provider.OpenSQLite(path)
	require.NoError(t, err)
	n, err := importFiles(context.Background(), db, []string{writeFile(t, "pts.geojson", pointsJSON)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, db.Close())

	cfg, err := config.Parse("[provider]\ntype = \"sqlite\"\npath = \"" + filepath.ToSlash(path) + "\"\n")
	require.NoError(t, err)

	_, err = openSource(context.Background(), cfg, []string{"x.geojson"})
	assert.Error(t, err)

	src, err := openSource(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer src.Close()
	assert.True(t, src.HasBounds)
	assert.IsType(t, &provider.SQLite{}, src.Provider)
}

func TestRenderToFiles(t *testing.T) {
	cfg, err := config.Parse("")
	require.NoError(t, err)
	src, err := openSource(context.Background(), cfg, []string{writeFile(t, "pts.geojson", pointsJSON)})
	require.NoError(t, err)
	defer src.Close()

	ec := cfg.Export
	ec.Format = "files"
	ec.Output = t.TempDir()
	sink, err := openSink(ec, export.NewMetadata("pts", src.Bounds, 0, 1, cfg.Tile.Size))
	require.NoError(t, err)
	defer sink.Close()

	e := &export.Exporter{Pipeline: pipeline(cfg, src.Provider), Sink: sink, Workers: 2, BatchSize: 10}
	stats, err := e.Run(context.Background(), src.Bounds, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Saved)
	assert.FileExists(t, filepath.Join(ec.Output, "pts", "0", "0", "0.png"))
	assert.FileExists(t, filepath.Join(ec.Output, "pts", "1", "1", "0.png"))
}
