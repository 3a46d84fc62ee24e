package viewport

import (
	"image"

	"github.com/paulmach/orb"
)

// Event types fired by the map and by layers.
const (
	EventClick      = "click"
	EventMouseMove  = "mousemove"
	EventMouseEnter = "mouseenter"
	EventMouseLeave = "mouseleave"
	EventZoomStart  = "zoomstart"
	EventZoomEnd    = "zoomend"
	EventMoveEnd    = "moveend"
	EventResize     = "resize"
	EventPopupOpen  = "popupopen"
)

// Event is the payload handed to listeners. Layers forwarding a map event
// copy it and set Target to themselves.
type Event struct {
	Type           string
	Target         any
	Map            *Map
	LatLng         orb.Point
	ContainerPoint image.Point
}

type Handler func(e *Event)

type listener struct {
	fn Handler
}

// Evented is an event emitter. The zero value is ready to use; it is not
// safe for concurrent use and belongs to the loop that owns the map.
type Evented struct {
	listeners map[string][]*listener
}

// On subscribes h to typ and returns the func that unsubscribes it.
func (e *Evented) On(typ string, h Handler) (off func()) {
	if e.listeners == nil {
		e.listeners = make(map[string][]*listener)
	}
	l := &listener{fn: h}
	e.listeners[typ] = append(e.listeners[typ], l)
	return func() { e.off(typ, l) }
}

func (e *Evented) off(typ string, l *listener) {
	ls := e.listeners[typ]
	for i, x := range ls {
		if x == l {
			e.listeners[typ] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// Listens reports whether anything is subscribed to typ.
func (e *Evented) Listens(typ string) bool {
	return len(e.listeners[typ]) > 0
}

// Fire calls every listener of typ. Listeners added or removed while
// firing take effect on the next event.
func (e *Evented) Fire(typ string, ev *Event) {
	ls := e.listeners[typ]
	if len(ls) == 0 {
		return
	}
	if ev == nil {
		ev = &Event{}
	}
	ev.Type = typ
	snapshot := make([]*listener, len(ls))
	copy(snapshot, ls)
	for _, l := range snapshot {
		l.fn(ev)
	}
}
