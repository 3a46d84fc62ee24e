package layer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geolayer/internal/geo"
	"geolayer/internal/provider"
	"geolayer/internal/render"
	"geolayer/internal/viewport"
)

type fakeTimer struct {
	at        time.Duration
	f         func()
	cancelled bool
}

type fakeJob struct {
	work, done func()
}

// fakeLoop runs timers against a manual clock and worker jobs on demand.
type fakeLoop struct {
	now    time.Duration
	timers []*fakeTimer
	jobs   []fakeJob
	armed  int
}

func (l *fakeLoop) AfterFunc(d time.Duration, f func()) func() {
	l.armed++
	t := &fakeTimer{at: l.now + d, f: f}
	l.timers = append(l.timers, t)
	return func() { t.cancelled = true }
}

func (l *fakeLoop) Go(work, done func()) {
	l.jobs = append(l.jobs, fakeJob{work: work, done: done})
}

func (l *fakeLoop) Advance(d time.Duration) {
	end := l.now + d
	for {
		idx := -1
		for i, t := range l.timers {
			if t.at <= end && (idx == -1 || t.at < l.timers[idx].at) {
				idx = i
			}
		}
		if idx == -1 {
			break
		}
		t := l.timers[idx]
		l.timers = append(l.timers[:idx], l.timers[idx+1:]...)
		if t.cancelled {
			continue
		}
		l.now = t.at
		t.f()
	}
	l.now = end
}

func (l *fakeLoop) RunJobs() {
	for len(l.jobs) > 0 {
		j := l.jobs[0]
		l.jobs = l.jobs[1:]
		j.work()
		j.done()
	}
}

func square(c orb.Point, r float64) orb.Polygon {
	return orb.Polygon{{
		{c[0] - r, c[1] - r}, {c[0] + r, c[1] - r}, {c[0] + r, c[1] + r}, {c[0] - r, c[1] + r}, {c[0] - r, c[1] - r},
	}}
}

type fixture struct {
	loop  *fakeLoop
	m     *viewport.Map
	layer *DataLayer
	mem   *provider.Memory
}

// newFixture shows zoom 2 around (0,0) in a 256x256 container, which makes
// tiles x,y in [1,2] visible.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{loop: &fakeLoop{}, m: viewport.New(viewport.Options{MaxZoom: 10})}
	if opts.Provider == nil {
		pt := geojson.NewFeature(orb.Point{10, 10})
		pt.Properties["name"] = "pin"
		area := geojson.NewFeature(square(orb.Point{0, 0}, 20))
		area.Properties["name"] = "area"
		f.mem = provider.NewMemory(pt, area)
		opts.Provider = f.mem
	}
	if opts.Styles == nil {
		opts.Styles = []render.Style{render.NewSimpleStyle()}
	}
	f.m.SetSize(256, 256)
	f.m.SetView(orb.Point{0, 0}, 2)
	f.layer = New(f.loop, opts)
	return f
}

func (f *fixture) render() {
	f.loop.Advance(DefaultRedrawDelay)
	f.loop.RunJobs()
}

func TestSchedulerBatches(t *testing.T) {
	loop := &fakeLoop{}
	var rendered []maptile.Tile
	s := newRedrawScheduler(loop, 20*time.Millisecond, func(t *Tile) { rendered = append(rendered, t.Coord) })

	a, b, c := &Tile{Coord: maptile.New(1, 0, 3)}, &Tile{Coord: maptile.New(2, 0, 3)}, &Tile{Coord: maptile.New(3, 0, 3)}
	s.Schedule(a)
	loop.Advance(5 * time.Millisecond)
	s.Schedule(b)
	loop.Advance(5 * time.Millisecond)
	s.Schedule(c)
	loop.Advance(9 * time.Millisecond)
	assert.Empty(t, rendered)
	assert.Equal(t, 3, s.Pending())

	loop.Advance(time.Millisecond)
	assert.Equal(t, []maptile.Tile{a.Coord, b.Coord, c.Coord}, rendered)
	assert.Equal(t, 1, loop.armed)

	d := &Tile{Coord: maptile.New(4, 0, 3)}
	s.Schedule(d)
	loop.Advance(30 * time.Millisecond)
	assert.Equal(t, []maptile.Tile{a.Coord, b.Coord, c.Coord, d.Coord}, rendered)
	assert.Equal(t, 2, loop.armed)
}

func TestSchedulerStop(t *testing.T) {
	loop := &fakeLoop{}
	calls := 0
	s := newRedrawScheduler(loop, 20*time.Millisecond, func(*Tile) { calls++ })
	s.Schedule(&Tile{})
	s.Stop()
	loop.Advance(time.Second)
	assert.Zero(t, calls)
	assert.Zero(t, s.Pending())
}

func TestHitTester(t *testing.T) {
	f := newFixture(t, Options{})
	center := orb.Point{0, 0}
	empty := orb.Point{60, -30}

	_, known := f.layer.OpaqueAt(center)
	assert.False(t, known, "detached")

	f.m.AddLayer(f.layer)
	_, known = f.layer.OpaqueAt(center)
	assert.False(t, known, "queued, not drawn")

	f.loop.Advance(DefaultRedrawDelay)
	opaque, known := f.layer.OpaqueAt(center)
	assert.True(t, known)
	assert.False(t, opaque, "surface exists but data is still loading")

	f.loop.RunJobs()
	opaque, known = f.layer.OpaqueAt(center)
	assert.True(t, known)
	assert.True(t, opaque)

	opaque, known = f.layer.OpaqueAt(empty)
	assert.True(t, known)
	assert.False(t, opaque)

	_, known = f.layer.OpaqueAt(orb.Point{-170, 0})
	assert.False(t, known, "tile never rendered")
	_, known = f.layer.OpaqueAtPixel(orb.Point{-1, 5}, 2)
	assert.False(t, known)
}

func TestMouseOverCounter(t *testing.T) {
	loop := &fakeLoop{}
	m := viewport.New(viewport.Options{})
	state := NewInteractionState()
	var enters, leaves int
	var layers []*DataLayer
	for range 3 {
		l := New(loop, Options{Interaction: state})
		l.On(viewport.EventMouseEnter, func(*viewport.Event) { enters++ })
		l.On(viewport.EventMouseLeave, func(*viewport.Event) { leaves++ })
		m.AddLayer(l)
		layers = append(layers, l)
	}
	ev := &viewport.Event{}

	for _, l := range layers {
		l.setMouseOver(true, ev)
	}
	assert.Equal(t, 3, state.Over())
	assert.Equal(t, CursorPointer, m.Cursor())
	assert.Equal(t, 1, enters)

	layers[0].setMouseOver(true, ev)
	assert.Equal(t, 3, state.Over(), "repeated enter is not counted")

	layers[0].setMouseOver(false, ev)
	layers[1].setMouseOver(false, ev)
	assert.Equal(t, 1, state.Over())
	assert.Equal(t, CursorPointer, m.Cursor())
	assert.Zero(t, leaves)

	layers[2].setMouseOver(false, ev)
	assert.Equal(t, 0, state.Over())
	assert.Equal(t, CursorDefault, m.Cursor())
	assert.Equal(t, 1, leaves)

	layers[2].setMouseOver(false, ev)
	assert.Equal(t, 0, state.Over())
	assert.Equal(t, 1, leaves)
}

func TestPointerEvents(t *testing.T) {
	f := newFixture(t, Options{})
	f.m.AddLayer(f.layer)
	f.render()

	var got []string
	var kept []*viewport.Event
	var last *viewport.Event
	for _, typ := range []string{viewport.EventClick, viewport.EventMouseMove, viewport.EventMouseEnter, viewport.EventMouseLeave} {
		f.layer.On(typ, func(e *viewport.Event) {
			got = append(got, e.Type)
			kept = append(kept, e)
			last = e
		})
	}
	over := f.m.LatLngToContainerPoint(orb.Point{0, 0})
	off := f.m.LatLngToContainerPoint(orb.Point{60, -30})

	f.m.MouseMove(over)
	assert.Equal(t, CursorPointer, f.m.Cursor())
	f.m.MouseMove(over)
	f.m.Click(over)
	require.NotNil(t, last)
	assert.Same(t, f.layer, last.Target)
	assert.Same(t, f.m, last.Map)
	assert.InDelta(t, 0, last.LatLng[0], 0.5)

	f.m.Click(off)
	f.m.MouseMove(off)
	assert.Equal(t, CursorDefault, f.m.Cursor())

	assert.Equal(t, []string{"mousemove", "mouseenter", "mousemove", "click", "mouseleave"}, got)
	for i, e := range kept {
		assert.Equal(t, got[i], e.Type, "event %d changed type after it was fired", i)
	}
}

type failingProvider struct{ provider.Memory }

func (p *failingProvider) LoadData(context.Context, provider.Query) (provider.FeatureSet, error) {
	return nil, errors.New("backend down")
}

func TestLoadFailureLeavesTileBlank(t *testing.T) {
	f := newFixture(t, Options{Provider: &failingProvider{}})
	loads := 0
	f.layer.On(EventTileLoad, func(*viewport.Event) { loads++ })
	f.m.AddLayer(f.layer)
	f.render()

	opaque, known := f.layer.OpaqueAt(orb.Point{0, 0})
	assert.True(t, known)
	assert.False(t, opaque)
	assert.Equal(t, 4, loads)
}

func TestEvictedTileIsNotDrawn(t *testing.T) {
	f := newFixture(t, Options{})
	loads := 0
	f.layer.On(EventTileLoad, func(*viewport.Event) { loads++ })
	f.m.AddLayer(f.layer)
	f.loop.Advance(DefaultRedrawDelay)
	tile := f.layer.Tile(maptile.New(2, 2, 2))
	require.NotNil(t, tile)
	require.NotNil(t, tile.Surface)

	f.m.PanBy(512, 0)
	assert.True(t, tile.Released())
	assert.Nil(t, f.layer.Tile(maptile.New(2, 2, 2)))
	assert.NotNil(t, f.layer.Tile(maptile.New(3, 2, 2)))

	f.loop.RunJobs()
	assert.Zero(t, loads)
}

func TestZoomCleanup(t *testing.T) {
	f := newFixture(t, Options{})
	f.m.AddLayer(f.layer)
	f.render()
	require.Equal(t, []int{2}, f.layer.Levels())

	f.m.SetZoom(3)
	f.render()
	assert.Equal(t, []int{2, 3}, f.layer.Levels())

	f.loop.Advance(80 * time.Millisecond)
	f.m.SetZoom(4)
	f.render()
	assert.Equal(t, []int{2, 3, 4}, f.layer.Levels())

	f.loop.Advance(150 * time.Millisecond)
	assert.Equal(t, []int{2, 3, 4}, f.layer.Levels(), "zoomstart cancelled the first sweep")

	f.loop.Advance(50 * time.Millisecond)
	assert.Equal(t, []int{4}, f.layer.Levels())
	opaque, _ := f.layer.OpaqueAt(orb.Point{0, 0})
	assert.True(t, opaque)
}

func TestRedrawKeepsZoomCleanupCancellable(t *testing.T) {
	f := newFixture(t, Options{})
	f.m.AddLayer(f.layer)
	f.render()

	f.m.SetZoom(3)
	f.render()
	f.loop.Advance(80 * time.Millisecond)
	f.layer.Redraw()
	assert.Equal(t, []int{3}, f.layer.Levels())
	f.render()

	f.m.SetZoom(4)
	f.render()
	assert.Equal(t, []int{3, 4}, f.layer.Levels())

	f.loop.Advance(120 * time.Millisecond)
	assert.Equal(t, []int{3, 4}, f.layer.Levels(), "sweep armed before Redraw must not fire")

	f.loop.Advance(60 * time.Millisecond)
	assert.Equal(t, []int{4}, f.layer.Levels())
}

func TestDetach(t *testing.T) {
	tracker := NewTracker(nil)
	f := newFixture(t, Options{Tracker: tracker})
	f.m.AddLayer(f.layer)
	assert.True(t, f.m.HasLayer(tracker))
	f.render()
	f.m.MouseMove(f.m.LatLngToContainerPoint(orb.Point{0, 0}))
	require.Equal(t, 1, f.layer.Interaction().Over())

	f.m.RemoveLayer(f.layer)
	assert.False(t, f.m.HasLayer(tracker))
	assert.Empty(t, f.layer.Levels())
	assert.Zero(t, f.layer.Interaction().Over())
	assert.False(t, f.m.Listens(viewport.EventMouseMove))
	assert.False(t, f.m.Listens(viewport.EventZoomEnd))
}

func TestBBoxHelpers(t *testing.T) {
	f := newFixture(t, Options{})
	ll := orb.Point{5, 5}
	assert.Equal(t, orb.Bound{Min: ll, Max: ll}, f.layer.PixelsToBBox(ll, geo.NewPad(10)), "detached")

	f.m.AddLayer(f.layer)
	assert.Equal(t, orb.Bound{Min: ll, Max: ll}, f.layer.PixelsToBBox(ll, geo.NewPad(0)))

	grown := f.layer.ExpandBBox(orb.Bound{Min: ll, Max: ll}, geo.NewPad(10, 20))
	assert.InDelta(t, 5-20*360.0/1024, grown.Min[0], 1e-9)
	assert.InDelta(t, 5+20*360.0/1024, grown.Max[0], 1e-9)
	assert.Less(t, grown.Min[1], 5.0)
	assert.Greater(t, grown.Max[1], 5.0)
}

func TestOpenPopup(t *testing.T) {
	type opened struct {
		ll orb.Point
		f  *geojson.Feature
	}
	var got []opened
	f := newFixture(t, Options{})
	f.layer.BindPopup(PopupFunc(func(_ *viewport.Map, ll orb.Point, feat *geojson.Feature) {
		got = append(got, opened{ll: ll, f: feat})
	}))
	f.m.AddLayer(f.layer)
	ctx := context.Background()

	f.layer.OpenPopup(ctx, orb.Point{10.5, 10})
	f.layer.OpenPopup(ctx, orb.Point{0, 0})
	f.layer.OpenPopup(ctx, orb.Point{-100, 60})
	f.loop.RunJobs()

	require.Len(t, got, 3)
	assert.Equal(t, orb.Point{10, 10}, got[0].ll)
	assert.Equal(t, "pin", got[0].f.Properties["name"])
	assert.Equal(t, orb.Point{0, 0}, got[1].ll)
	assert.Equal(t, "area", got[1].f.Properties["name"])
	assert.Equal(t, orb.Point{-100, 60}, got[2].ll)
	assert.Nil(t, got[2].f)
}

func TestTracker(t *testing.T) {
	changes := 0
	tracker := NewTracker(func(*Tracker) { changes++ })
	f := newFixture(t, Options{Tracker: tracker})
	f.m.AddLayer(f.layer)
	f.render()

	f.m.MouseMove(f.m.LatLngToContainerPoint(orb.Point{0, 0}))
	f.loop.RunJobs()
	hovered, ll, ok := tracker.Hovered()
	require.True(t, ok)
	require.Len(t, hovered, 1)
	assert.Equal(t, "area", hovered[0].Properties["name"])
	assert.InDelta(t, 0, ll[0], 0.5)

	f.m.MouseMove(f.m.LatLngToContainerPoint(orb.Point{60, -30}))
	f.loop.RunJobs()
	_, _, ok = tracker.Hovered()
	assert.False(t, ok)
	assert.GreaterOrEqual(t, changes, 2)
}

func TestTrackerFollowsOwnLayer(t *testing.T) {
	loop := &fakeLoop{}
	m := viewport.New(viewport.Options{MaxZoom: 10})
	m.SetSize(256, 256)
	m.SetView(orb.Point{0, 0}, 2)
	state := NewInteractionState()

	trackerA, trackerB := NewTracker(nil), NewTracker(nil)
	a := New(loop, Options{
		Provider:    provider.NewMemory(geojson.NewFeature(square(orb.Point{0, 0}, 5))),
		Styles:      []render.Style{render.NewSimpleStyle()},
		Interaction: state,
		Tracker:     trackerA,
	})
	b := New(loop, Options{
		Provider: provider.NewMemory(
			geojson.NewFeature(square(orb.Point{0, 0}, 5)),
			geojson.NewFeature(square(orb.Point{30, 0}, 5)),
		),
		Styles:      []render.Style{render.NewSimpleStyle()},
		Interaction: state,
		Tracker:     trackerB,
	})
	m.AddLayer(a)
	m.AddLayer(b)
	loop.Advance(DefaultRedrawDelay)
	loop.RunJobs()

	move := func(ll orb.Point) {
		m.MouseMove(m.LatLngToContainerPoint(ll))
		loop.RunJobs()
	}

	move(orb.Point{0, 0})
	assert.Equal(t, 2, state.Over())
	_, _, ok := trackerA.Hovered()
	assert.True(t, ok)
	_, _, ok = trackerB.Hovered()
	assert.True(t, ok)

	move(orb.Point{30, 0})
	assert.Equal(t, 1, state.Over())
	hovered, _, ok := trackerA.Hovered()
	assert.False(t, ok, "pointer left a's content")
	assert.Empty(t, hovered)
	_, _, ok = trackerB.Hovered()
	assert.True(t, ok)

	move(orb.Point{100, 60})
	assert.Zero(t, state.Over())
	_, _, ok = trackerA.Hovered()
	assert.False(t, ok)
	_, _, ok = trackerB.Hovered()
	assert.False(t, ok)
}

func TestMouseOutPerLayer(t *testing.T) {
	loop := &fakeLoop{}
	m := viewport.New(viewport.Options{})
	state := NewInteractionState()
	a, b := New(loop, Options{Interaction: state}), New(loop, Options{Interaction: state})
	m.AddLayer(a)
	m.AddLayer(b)
	var outs, leaves []string
	for name, l := range map[string]*DataLayer{"a": a, "b": b} {
		l.On(EventMouseOut, func(*viewport.Event) { outs = append(outs, name) })
		l.On(viewport.EventMouseLeave, func(*viewport.Event) { leaves = append(leaves, name) })
	}
	ev := &viewport.Event{}

	a.setMouseOver(true, ev)
	b.setMouseOver(true, ev)
	a.setMouseOver(false, ev)
	assert.Equal(t, []string{"a"}, outs)
	assert.Empty(t, leaves)

	b.setMouseOver(false, ev)
	assert.Equal(t, []string{"a", "b"}, outs)
	assert.Equal(t, []string{"b"}, leaves)
	assert.Empty(t, ev.Type, "fired events are copies")
}

// recordingStyle pads by a fixed amount and logs every symbol lookup.
type recordingStyle struct {
	name  string
	pad   geo.Pad
	calls *[]string
}

func (s recordingStyle) TilePad(int) geo.Pad { return s.pad }

func (s recordingStyle) Symbol(f *geojson.Feature, _ int) render.Symbol {
	*s.calls = append(*s.calls, s.name+":"+f.Properties.MustString("name"))
	return render.Symbol{Fill: "#ff0000", Radius: 2}
}

func TestPipelineStyles(t *testing.T) {
	f1 := geojson.NewFeature(orb.Point{1, 1})
	f1.Properties["name"] = "f1"
	f2 := geojson.NewFeature(orb.Point{2, 2})
	f2.Properties["name"] = "f2"

	var calls []string
	s1 := recordingStyle{name: "s1", pad: geo.NewPad(16), calls: &calls}
	s2 := recordingStyle{name: "s2", pad: geo.NewPad(64), calls: &calls}
	p := Pipeline{
		Provider: provider.NewMemory(f1, f2),
		Styles:   []render.Style{s1, s2},
		Grid:     geo.NewGrid(viewport.Mercator{TileSize: 256}, 256),
	}
	c := maptile.New(2, 1, 2)
	tile, err := p.Render(context.Background(), c)
	require.NoError(t, err)
	defer tile.Close()

	bbox := p.Grid.TileBounds(c)
	assert.Equal(t, p.Grid.Expand(2, bbox, s1.pad), tile.Query)
	assert.NotEqual(t, p.Grid.Expand(2, bbox, s2.pad), tile.Query)
	assert.Equal(t, []string{"s1:f1", "s1:f2", "s2:f1", "s2:f2"}, calls)
	assert.Equal(t, 4, tile.Drawn)
}

func TestRenderTile(t *testing.T) {
	mem := provider.NewMemory(geojson.NewFeature(square(orb.Point{0, 0}, 20)))
	p := Pipeline{
		Provider: mem,
		Styles:   []render.Style{render.NewSimpleStyle()},
		Grid:     geo.NewGrid(viewport.Mercator{TileSize: 256}, 256),
	}
	tile, err := p.Render(context.Background(), maptile.New(0, 0, 0))
	require.NoError(t, err)
	defer tile.Close()
	assert.False(t, tile.Surface.IsTransparent(128, 128))
	assert.True(t, tile.Surface.IsTransparent(10, 10))

	_, err = (&Pipeline{Provider: &failingProvider{}, Grid: p.Grid}).Render(context.Background(), maptile.New(0, 0, 0))
	assert.Error(t, err)
}

func TestRedraw(t *testing.T) {
	f := newFixture(t, Options{})
	f.m.AddLayer(f.layer)
	f.render()
	before := f.layer.Tile(maptile.New(2, 2, 2))
	require.NotNil(t, before)
	opaque, _ := f.layer.OpaqueAt(orb.Point{0, 0})
	require.True(t, opaque)

	f.mem.Clear()
	f.layer.Redraw()
	assert.True(t, before.Released())
	f.render()
	opaque, known := f.layer.OpaqueAt(orb.Point{0, 0})
	assert.True(t, known)
	assert.False(t, opaque)
}
