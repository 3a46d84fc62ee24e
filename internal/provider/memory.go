package provider

import (
	"context"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Memory keeps features in memory and answers queries with a linear scan
// over their bounds.
type Memory struct {
	mu       sync.RWMutex
	features []*geojson.Feature
}

func NewMemory(features ...*geojson.Feature) *Memory {
	m := &Memory{}
	m.Add(features...)
	return m
}

func (m *Memory) Add(features ...*geojson.Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = appendValid(m.features, features)
}

// Replace swaps the whole feature set in one step; readers see either the
// old set or the new one.
func (m *Memory) Replace(features ...*geojson.Feature) {
	next := appendValid(nil, features)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = next
}

func appendValid(dst, features []*geojson.Feature) []*geojson.Feature {
	for _, f := range features {
		if f != nil && f.Geometry != nil {
			dst = append(dst, f)
		}
	}
	return dst
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.features)
}

// Features returns a snapshot of every feature.
func (m *Memory) Features() []*geojson.Feature {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*geojson.Feature, len(m.features))
	copy(out, m.features)
	return out
}

// Bound is the box around every feature. ok is false when empty.
func (m *Memory) Bound() (b orb.Bound, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, f := range m.features {
		if i == 0 {
			b = f.Geometry.Bound()
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, len(m.features) > 0
}

func (m *Memory) LoadData(ctx context.Context, q Query) (FeatureSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out Slice
	for _, f := range m.features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if intersects(f.Geometry, q.BBox) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *Memory) Geometry(f *geojson.Feature) orb.Geometry {
	return geometryOf(f)
}
