package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feature(g orb.Geometry, name string) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties["name"] = name
	return f
}

func testFeatures() []*geojson.Feature {
	return []*geojson.Feature{
		feature(orb.Point{1, 1}, "a"),
		feature(orb.LineString{{-20, -20}, {-15, -15}}, "b"),
		feature(orb.Polygon{{{4, 4}, {30, 4}, {30, 30}, {4, 30}, {4, 4}}}, "c"),
	}
}

func names(fs FeatureSet) []string {
	var out []string
	for _, f := range fs.All() {
		out = append(out, f.Properties.MustString("name"))
	}
	return out
}

func TestMemoryLoadData(t *testing.T) {
	m := NewMemory(testFeatures()...)
	m.Add(nil, geojson.NewFeature(nil))
	require.Equal(t, 3, m.Len())

	tests := []struct {
		name string
		bbox orb.Bound
		want []string
	}{
		{name: "around origin", bbox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}}, want: []string{"a", "c"}},
		{name: "degenerate inside polygon", bbox: orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{10, 10}}, want: []string{"c"}},
		{name: "line only", bbox: orb.Bound{Min: orb.Point{-30, -30}, Max: orb.Point{-16, -16}}, want: []string{"b"}},
		{name: "nothing", bbox: orb.Bound{Min: orb.Point{100, 0}, Max: orb.Point{110, 5}}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := m.LoadData(context.Background(), Query{BBox: tt.bbox})
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(fs))
			assert.Equal(t, len(tt.want), fs.Len())
		})
	}

	b, ok := m.Bound()
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-20, -20}, Max: orb.Point{30, 30}}, b)

	m.Clear()
	_, ok = m.Bound()
	assert.False(t, ok)
}

func TestMemoryCancelled(t *testing.T) {
	m := NewMemory(testFeatures()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.LoadData(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeatureSets(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	for _, f := range testFeatures() {
		fc.Append(f)
	}
	sets := map[string]FeatureSet{
		"slice":      Slice(testFeatures()),
		"collection": Collection{FC: fc},
	}
	for name, fs := range sets {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 3, fs.Len())
			assert.Equal(t, "a", First(fs).Properties.MustString("name"))
			assert.Len(t, Collect(fs), 3)

			seen := 0
			for i := range fs.All() {
				seen++
				if i == 1 {
					break
				}
			}
			assert.Equal(t, 2, seen)
		})
	}
	assert.Nil(t, First(Slice{}))
	assert.Equal(t, 0, Collection{}.Len())
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Import(ctx, append(testFeatures(), nil))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	fs, err := s.LoadData(ctx, Query{BBox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names(fs))
	assert.Equal(t, orb.Point{1, 1}, s.Geometry(First(fs)))

	b, ok, err := s.Bound(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-20, -20}, Max: orb.Point{30, 30}}, b)
}

type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  time.Duration
	fail bool
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, false, errors.New("store down")
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[key] = val
	s.ttl = ttl
	return nil
}

type countingProvider struct {
	*Memory
	calls int
}

func (p *countingProvider) LoadData(ctx context.Context, q Query) (FeatureSet, error) {
	p.calls++
	return p.Memory.LoadData(ctx, q)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{Memory: NewMemory(testFeatures()...)}
	store := &fakeStore{}
	c := NewCached(inner, store, "test", time.Minute)
	q := Query{BBox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}}}

	first, err := c.LoadData(ctx, q)
	require.NoError(t, err)
	second, err := c.LoadData(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, names(first), names(second))
	assert.Equal(t, time.Minute, store.ttl)
	assert.Contains(t, store.data, "test:0.0000000,0.0000000,5.0000000,5.0000000")
}

func TestCachedStoreDown(t *testing.T) {
	inner := &countingProvider{Memory: NewMemory(testFeatures()...)}
	c := NewCached(inner, &fakeStore{fail: true}, "test", time.Minute)
	q := Query{BBox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}}}

	for range 2 {
		fs, err := c.LoadData(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, names(fs))
	}
	assert.Equal(t, 2, inner.calls)
}

func TestMemoryReplaceIsAtomic(t *testing.T) {
	m := NewMemory(testFeatures()...)
	world := Query{BBox: orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		empty int
		done  = make(chan struct{})
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				fs, err := m.LoadData(context.Background(), world)
				if err != nil || fs.Len() == 0 {
					mu.Lock()
					empty++
					mu.Unlock()
				}
			}
		}()
	}
	for range 500 {
		m.Replace(testFeatures()...)
	}
	close(done)
	wg.Wait()

	assert.Zero(t, empty)
	assert.Equal(t, 3, m.Len())

	m.Replace(nil, feature(orb.Point{2, 2}, "z"))
	fs, err := m.LoadData(context.Background(), world)
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, names(fs))
}
