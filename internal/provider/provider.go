// Package provider supplies features for a bounding box. Providers are safe
// for concurrent use: the tile pipeline calls them from worker goroutines.
package provider

import (
	"context"
	"iter"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Query selects features by geographic box.
type Query struct {
	BBox orb.Bound
}

// FeatureSet is a provider result. Plain slices and collections with their
// own iteration both satisfy it.
type FeatureSet interface {
	Len() int
	All() iter.Seq2[int, *geojson.Feature]
}

type Provider interface {
	LoadData(ctx context.Context, q Query) (FeatureSet, error)
	Geometry(f *geojson.Feature) orb.Geometry
}

// Slice is a FeatureSet over a plain slice.
type Slice []*geojson.Feature

func (s Slice) Len() int { return len(s) }

func (s Slice) All() iter.Seq2[int, *geojson.Feature] {
	return func(yield func(int, *geojson.Feature) bool) {
		for i, f := range s {
			if !yield(i, f) {
				return
			}
		}
	}
}

// Collection is a FeatureSet over a GeoJSON feature collection.
type Collection struct {
	FC *geojson.FeatureCollection
}

func (c Collection) Len() int {
	if c.FC == nil {
		return 0
	}
	return len(c.FC.Features)
}

func (c Collection) All() iter.Seq2[int, *geojson.Feature] {
	return func(yield func(int, *geojson.Feature) bool) {
		if c.FC == nil {
			return
		}
		for i := range c.FC.Features {
			if !yield(i, c.FC.Features[i]) {
				return
			}
		}
	}
}

// First returns the first feature of fs, or nil.
func First(fs FeatureSet) *geojson.Feature {
	if fs == nil {
		return nil
	}
	for _, f := range fs.All() {
		return f
	}
	return nil
}

// Collect copies fs into a slice.
func Collect(fs FeatureSet) []*geojson.Feature {
	if fs == nil {
		return nil
	}
	out := make([]*geojson.Feature, 0, fs.Len())
	for _, f := range fs.All() {
		out = append(out, f)
	}
	return out
}

// geometryOf is the default geometry accessor.
func geometryOf(f *geojson.Feature) orb.Geometry {
	if f == nil {
		return nil
	}
	return f.Geometry
}

func intersects(g orb.Geometry, b orb.Bound) bool {
	if g == nil {
		return false
	}
	return g.Bound().Intersects(b)
}
