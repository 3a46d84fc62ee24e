package layer

import (
	"geolayer/internal/viewport"
)

const (
	CursorPointer = "pointer"
	CursorDefault = "auto"
)

// EventMouseOut fires on a layer whenever the pointer leaves its own drawn
// content, whatever the other layers on the map report.
const EventMouseOut = "mouseout"

// InteractionState is shared by every data layer on one map. It counts the
// layers that currently have the pointer over drawn content.
type InteractionState struct {
	over int
}

func NewInteractionState() *InteractionState {
	return &InteractionState{}
}

// Over is the number of layers under the pointer.
func (s *InteractionState) Over() int { return s.over }

// Cursor is the pointer style the map container should show.
func (s *InteractionState) Cursor() string {
	if s.over > 0 {
		return CursorPointer
	}
	return CursorDefault
}

func (s *InteractionState) enter() int {
	s.over++
	return s.over
}

func (s *InteractionState) leave() int {
	if s.over > 0 {
		s.over--
	}
	return s.over
}

// setMouseOver records whether the pointer is over this layer's content.
// The shared count drives the map cursor; mouseenter fires when the count
// leaves zero and mouseleave when it returns to zero. Every event gets its
// own copy of ev.
func (l *DataLayer) setMouseOver(set bool, ev *viewport.Event) {
	if l.mouseover == set {
		return
	}
	l.mouseover = set
	s := l.interaction
	if set {
		n := s.enter()
		if l.m != nil {
			l.m.SetCursor(s.Cursor())
		}
		if n == 1 {
			l.Fire(viewport.EventMouseEnter, copyEvent(ev))
		}
		return
	}
	n := s.leave()
	if l.m != nil {
		l.m.SetCursor(s.Cursor())
	}
	l.Fire(EventMouseOut, copyEvent(ev))
	if n == 0 {
		l.Fire(viewport.EventMouseLeave, copyEvent(ev))
	}
}

func copyEvent(ev *viewport.Event) *viewport.Event {
	if ev == nil {
		return nil
	}
	c := *ev
	return &c
}
