package layer

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geolayer/internal/provider"
	"geolayer/internal/viewport"
)

// Tracker is a companion layer that keeps the features under the pointer
// while it hovers over its data layer's content.
type Tracker struct {
	layer    *DataLayer
	offs     []func()
	seq      uint64
	hovered  []*geojson.Feature
	latlng   orb.Point
	active   bool
	onChange func(*Tracker)
}

// NewTracker returns a tracker; onChange, if set, runs on the loop after
// every hover change.
func NewTracker(onChange func(*Tracker)) *Tracker {
	return &Tracker{onChange: onChange}
}

func (t *Tracker) setDataLayer(l *DataLayer) { t.layer = l }

func (t *Tracker) OnAdd(m *viewport.Map) {
	if t.layer == nil {
		return
	}
	t.offs = append(t.offs,
		t.layer.On(viewport.EventMouseEnter, t.onMove),
		t.layer.On(viewport.EventMouseMove, t.onMove),
		t.layer.On(EventMouseOut, t.onLeave),
	)
}

func (t *Tracker) OnRemove(m *viewport.Map) {
	for i := len(t.offs) - 1; i >= 0; i-- {
		t.offs[i]()
	}
	t.offs = nil
	t.clear()
}

// Hovered returns the features under the pointer and where it is.
func (t *Tracker) Hovered() ([]*geojson.Feature, orb.Point, bool) {
	return t.hovered, t.latlng, t.active
}

func (t *Tracker) onMove(e *viewport.Event) {
	t.seq++
	seq := t.seq
	ll := e.LatLng
	t.layer.LoadDataAround(context.Background(), ll, t.layer.opts.HitRadius, func(fs provider.FeatureSet, err error) {
		if seq != t.seq {
			return
		}
		if err != nil {
			t.layer.log.Debugf("tracker data: %v", err)
			return
		}
		t.hovered = provider.Collect(fs)
		t.latlng = ll
		t.active = true
		t.changed()
	})
}

func (t *Tracker) onLeave(*viewport.Event) {
	t.seq++
	t.clear()
	t.changed()
}

func (t *Tracker) clear() {
	t.hovered = nil
	t.active = false
}

func (t *Tracker) changed() {
	if t.onChange != nil {
		t.onChange(t)
	}
}
