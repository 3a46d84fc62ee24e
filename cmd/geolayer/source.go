package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"geolayer/internal/config"
	"geolayer/internal/export"
	"geolayer/internal/geo"
	"geolayer/internal/geom"
	"geolayer/internal/layer"
	"geolayer/internal/provider"
	"geolayer/internal/viewport"
)

// source is the provider a command renders from, with what it needs closed.
type source struct {
	Provider  provider.Provider
	Bounds    orb.Bound
	HasBounds bool
	closers   []io.Closer
}

func (s *source) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openSource builds the configured provider. Files are loaded into the
// memory provider; with sqlite they must be imported first. A configured
// redis address puts the cache in front.
func openSource(ctx context.Context, cfg *config.Config, files []string) (*source, error) {
	src := &source{}
	switch cfg.Provider.Type {
	case "sqlite":
		if len(files) > 0 {
			return nil, errors.New("the sqlite provider reads its database; use import to add files")
		}
		db, err := provider.OpenSQLite(cfg.Provider.Path)
		if err != nil {
			return nil, err
		}
		src.closers = append(src.closers, db)
		b, ok, err := db.Bound(ctx)
		if err != nil {
			src.Close()
			return nil, err
		}
		src.Provider, src.Bounds, src.HasBounds = db, b, ok
	default:
		mem := provider.NewMemory()
		for _, f := range files {
			d, err := geom.Load(f)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", filepath.Base(f), err)
			}
			mem.Add(d.Features...)
		}
		src.Provider = mem
		src.Bounds, src.HasBounds = mem.Bound()
	}

	if cfg.Cache.Redis != "" {
		store := provider.NewRedisStore(cfg.Cache.Redis)
		src.closers = append(src.closers, store)
		src.Provider = provider.NewCached(src.Provider, store, cfg.Cache.Prefix, cfg.Cache.TTL)
	}
	return src, nil
}

func importFiles(ctx context.Context, db *provider.SQLite, files []string) (int, error) {
	total := 0
	for _, f := range files {
		d, err := geom.Load(f)
		if err != nil {
			return total, fmt.Errorf("load %s: %w", filepath.Base(f), err)
		}
		n, err := db.Import(ctx, d.Features)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func pipeline(cfg *config.Config, p provider.Provider) layer.Pipeline {
	return layer.Pipeline{
		Provider:   p,
		Styles:     cfg.LayerStyles(),
		Grid:       geo.NewGrid(viewport.Mercator{TileSize: cfg.Tile.Size}, cfg.Tile.Size),
		Resolution: cfg.Tile.Resolution,
	}
}

func openSink(ec config.ExportConfig, meta export.Metadata) (export.Sink, error) {
	switch ec.Format {
	case "mysql":
		return export.OpenMySQL(ec.MySQL, meta)
	case "files":
		return export.NewFiles(filepath.Join(ec.Output, meta.Name)), nil
	default:
		return export.OpenMBTiles(filepath.Join(ec.Output, meta.Name+".mbtiles"), meta)
	}
}

// parseBBox reads "west,south,east,north".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want west,south,east,north", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bbox %q: min exceeds max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
