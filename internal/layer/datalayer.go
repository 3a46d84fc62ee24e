package layer

import (
	"context"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"

	"geolayer/internal/geo"
	"geolayer/internal/provider"
	"geolayer/internal/render"
	"geolayer/internal/viewport"
)

const (
	DefaultRedrawDelay  = 20 * time.Millisecond
	DefaultCleanupDelay = 200 * time.Millisecond
	DefaultHitRadius    = 5
)

type Options struct {
	Provider provider.Provider
	Styles   []render.Style
	TileSize int
	// Resolution is the device pixel ratio of tile surfaces.
	Resolution   float64
	RedrawDelay  time.Duration
	CleanupDelay time.Duration
	// HitRadius is the pixel radius used to find features under a point.
	HitRadius float64
	// Interaction is shared by every layer on the same map.
	Interaction *InteractionState
	Tracker     *Tracker
	Log         *log.Entry
}

type level struct {
	tiles map[maptile.Tile]*Tile
}

// DataLayer is a tile source drawing provider features. It is added to a
// viewport.Map and must only be used from the loop it was created with.
type DataLayer struct {
	viewport.Evented

	opts        Options
	loop        Loop
	log         *log.Entry
	interaction *InteractionState
	tracker     *Tracker
	pipeline    Pipeline
	sched       *redrawScheduler

	m      *viewport.Map
	grid   geo.Grid
	ctx    context.Context
	cancel context.CancelFunc
	offs   []func()

	levels        map[int]*level
	cleanupCancel func()
	mouseover     bool
	popup         Popup
}

func New(loop Loop, opts Options) *DataLayer {
	if opts.TileSize <= 0 {
		opts.TileSize = geo.DefaultTileSize
	}
	if opts.Resolution < 1 {
		opts.Resolution = 1
	}
	if opts.RedrawDelay <= 0 {
		opts.RedrawDelay = DefaultRedrawDelay
	}
	if opts.CleanupDelay <= 0 {
		opts.CleanupDelay = DefaultCleanupDelay
	}
	if opts.HitRadius <= 0 {
		opts.HitRadius = DefaultHitRadius
	}
	if opts.Interaction == nil {
		opts.Interaction = NewInteractionState()
	}
	if opts.Log == nil {
		opts.Log = log.WithField("component", "datalayer")
	}
	l := &DataLayer{
		opts:        opts,
		loop:        loop,
		log:         opts.Log,
		interaction: opts.Interaction,
		tracker:     opts.Tracker,
		levels:      make(map[int]*level),
		ctx:         context.Background(),
	}
	l.sched = newRedrawScheduler(loop, opts.RedrawDelay, l.redrawTile)
	if l.tracker != nil {
		l.tracker.setDataLayer(l)
	}
	return l
}

func (l *DataLayer) Options() Options               { return l.opts }
func (l *DataLayer) Map() *viewport.Map             { return l.m }
func (l *DataLayer) Provider() provider.Provider    { return l.opts.Provider }
func (l *DataLayer) Styles() []render.Style         { return l.opts.Styles }
func (l *DataLayer) TileSize() int                  { return l.opts.TileSize }
func (l *DataLayer) Interaction() *InteractionState { return l.interaction }

// OnAdd attaches the layer: the tracker goes on the map first, then the
// layer subscribes to pointer and zoom events.
func (l *DataLayer) OnAdd(m *viewport.Map) {
	l.m = m
	l.grid = geo.NewGrid(m, l.opts.TileSize)
	l.pipeline = Pipeline{
		Provider:   l.opts.Provider,
		Styles:     l.opts.Styles,
		Grid:       l.grid,
		Resolution: l.opts.Resolution,
		Log:        l.log,
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	if l.tracker != nil {
		m.AddLayer(l.tracker)
	}
	l.offs = append(l.offs,
		m.On(viewport.EventMouseMove, l.onMouseMove),
		m.On(viewport.EventClick, l.onClick),
		m.On(viewport.EventZoomStart, l.onZoomStart),
		m.On(viewport.EventZoomEnd, l.onZoomEnd),
	)
}

// OnRemove undoes OnAdd in reverse order and releases every tile.
func (l *DataLayer) OnRemove(m *viewport.Map) {
	for i := len(l.offs) - 1; i >= 0; i-- {
		l.offs[i]()
	}
	l.offs = nil
	if l.tracker != nil {
		m.RemoveLayer(l.tracker)
	}
	l.sched.Stop()
	l.cancelCleanup()
	if l.mouseover {
		l.setMouseOver(false, &viewport.Event{Target: l, Map: m})
	}
	for z, lvl := range l.levels {
		for _, t := range lvl.tiles {
			t.release()
		}
		delete(l.levels, z)
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.m = nil
}

// CreateTile registers an empty tile and queues its redraw.
func (l *DataLayer) CreateTile(c maptile.Tile) {
	lvl := l.level(int(c.Z))
	if old, ok := lvl.tiles[c]; ok {
		old.release()
	}
	t := &Tile{Coord: c}
	lvl.tiles[c] = t
	l.sched.Schedule(t)
}

// RemoveTile frees a tile of the current zoom right away. Tiles of other
// zoom levels stay until the zoom cleanup sweeps their level.
func (l *DataLayer) RemoveTile(c maptile.Tile) {
	lvl := l.levels[int(c.Z)]
	if lvl == nil {
		return
	}
	if l.m != nil && int(c.Z) != l.m.Zoom() {
		return
	}
	if t, ok := lvl.tiles[c]; ok {
		t.release()
		delete(lvl.tiles, c)
	}
	if len(lvl.tiles) == 0 {
		delete(l.levels, int(c.Z))
	}
}

// Redraw drops the tiles of other zoom levels and queues every tile of
// the current zoom for drawing again, for use after the data changed.
func (l *DataLayer) Redraw() {
	if l.m == nil {
		return
	}
	l.sweepLevels()
	for _, c := range l.m.ActiveTiles(l) {
		l.CreateTile(c)
	}
}

func (l *DataLayer) level(z int) *level {
	lvl := l.levels[z]
	if lvl == nil {
		lvl = &level{tiles: make(map[maptile.Tile]*Tile)}
		l.levels[z] = lvl
	}
	return lvl
}

// Tile returns the render record of c, if tracked.
func (l *DataLayer) Tile(c maptile.Tile) *Tile {
	if lvl := l.levels[int(c.Z)]; lvl != nil {
		return lvl.tiles[c]
	}
	return nil
}

// Levels lists the zoom levels that still hold tiles, ascending.
func (l *DataLayer) Levels() []int {
	out := make([]int, 0, len(l.levels))
	for z := range l.levels {
		out = append(out, z)
	}
	slices.Sort(out)
	return out
}

func (l *DataLayer) live(t *Tile) bool {
	if t.released {
		return false
	}
	lvl := l.levels[int(t.Coord.Z)]
	return lvl != nil && lvl.tiles[t.Coord] == t
}

// redrawTile runs one tile through the pipeline. The load happens off the
// loop; its continuation draws only if the tile is still the live record
// for its coordinate.
func (l *DataLayer) redrawTile(t *Tile) {
	if l.m == nil || !l.live(t) {
		return
	}
	l.pipeline.Prepare(t)
	l.LoadData(l.ctx, t.Query, func(fs provider.FeatureSet, err error) {
		if !l.live(t) {
			l.log.WithField("tile", t.Coord).Debug("tile gone before its data arrived")
			return
		}
		l.pipeline.Draw(t, fs, err)
		l.Fire(EventTileLoad, &viewport.Event{Target: l, Map: l.m})
	})
}

// EventTileLoad fires after a tile finished drawing.
const EventTileLoad = "tileload"

func (l *DataLayer) onZoomStart(*viewport.Event) {
	l.cancelCleanup()
}

func (l *DataLayer) onZoomEnd(*viewport.Event) {
	l.cancelCleanup()
	l.cleanupCancel = l.loop.AfterFunc(l.opts.CleanupDelay, l.sweepLevels)
}

func (l *DataLayer) cancelCleanup() {
	if l.cleanupCancel != nil {
		l.cleanupCancel()
		l.cleanupCancel = nil
	}
}

// sweepLevels releases every zoom level but the current one.
func (l *DataLayer) sweepLevels() {
	l.cancelCleanup()
	if l.m == nil {
		return
	}
	zoom := l.m.Zoom()
	for z, lvl := range l.levels {
		if z == zoom {
			continue
		}
		for _, t := range lvl.tiles {
			t.release()
		}
		delete(l.levels, z)
	}
}

func (l *DataLayer) forward(e *viewport.Event) *viewport.Event {
	ev := *e
	ev.Target = l
	ev.Map = l.m
	return &ev
}

func (l *DataLayer) onMouseMove(e *viewport.Event) {
	ev := l.forward(e)
	if opaque, _ := l.OpaqueAt(e.LatLng); opaque {
		l.Fire(viewport.EventMouseMove, ev)
		l.setMouseOver(true, ev)
		return
	}
	l.setMouseOver(false, ev)
}

func (l *DataLayer) onClick(e *viewport.Event) {
	if opaque, _ := l.OpaqueAt(e.LatLng); opaque {
		l.Fire(viewport.EventClick, l.forward(e))
	}
}

// LoadData asks the provider for bbox off the loop and hands the result
// to cb on the loop.
func (l *DataLayer) LoadData(ctx context.Context, bbox orb.Bound, cb func(provider.FeatureSet, error)) {
	p := l.opts.Provider
	if p == nil {
		cb(nil, nil)
		return
	}
	var (
		fs  provider.FeatureSet
		err error
	)
	l.loop.Go(func() {
		fs, err = p.LoadData(ctx, provider.Query{BBox: bbox})
	}, func() {
		cb(fs, err)
	})
}

// LoadDataAround loads the features within radius pixels of ll.
func (l *DataLayer) LoadDataAround(ctx context.Context, ll orb.Point, radius float64, cb func(provider.FeatureSet, error)) {
	l.LoadData(ctx, l.PixelsToBBox(ll, geo.Uniform(radius)), cb)
}

// ExpandBBox grows bbox by pad pixels at the current zoom. Detached
// layers return bbox unchanged.
func (l *DataLayer) ExpandBBox(bbox orb.Bound, pad geo.Pad) orb.Bound {
	if l.m == nil {
		return bbox
	}
	return l.grid.Expand(l.m.Zoom(), bbox, pad)
}

// PixelsToBBox is the box pad pixels around ll at the current zoom.
func (l *DataLayer) PixelsToBBox(ll orb.Point, pad geo.Pad) orb.Bound {
	return l.ExpandBBox(orb.Bound{Min: ll, Max: ll}, pad)
}
