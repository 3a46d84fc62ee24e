package layer

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geolayer/internal/provider"
	"geolayer/internal/viewport"
)

// Popup shows a feature at a location on the map. f is nil when nothing
// was found under the location.
type Popup interface {
	Open(m *viewport.Map, ll orb.Point, f *geojson.Feature)
}

// PopupFunc adapts a func to Popup.
type PopupFunc func(m *viewport.Map, ll orb.Point, f *geojson.Feature)

func (fn PopupFunc) Open(m *viewport.Map, ll orb.Point, f *geojson.Feature) { fn(m, ll, f) }

func (l *DataLayer) BindPopup(p Popup) { l.popup = p }

// OpenPopup opens the bound popup for the first feature within the hit
// radius of ll. Point features anchor the popup on themselves, anything
// else at ll. Without a bound popup it does nothing.
func (l *DataLayer) OpenPopup(ctx context.Context, ll orb.Point) {
	if l.popup == nil || l.m == nil {
		return
	}
	l.LoadDataAround(ctx, ll, l.opts.HitRadius, func(fs provider.FeatureSet, err error) {
		if l.m == nil || l.popup == nil {
			return
		}
		var f *geojson.Feature
		if err != nil {
			l.log.Debugf("popup data: %v", err)
		} else {
			f = provider.First(fs)
		}
		anchor := ll
		if f != nil {
			if pt, ok := l.opts.Provider.Geometry(f).(orb.Point); ok {
				anchor = pt
			}
		}
		l.popup.Open(l.m, anchor, f)
		l.Fire(viewport.EventPopupOpen, &viewport.Event{Target: l, Map: l.m, LatLng: anchor})
	})
}
