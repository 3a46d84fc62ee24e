package layer

import "time"

// redrawScheduler batches tile redraws: the first request arms one timer,
// requests arriving before it fires join the same batch, and the batch is
// drained in request order.
type redrawScheduler struct {
	loop   Loop
	delay  time.Duration
	render func(*Tile)

	queue  []*Tile
	cancel func()
}

func newRedrawScheduler(loop Loop, delay time.Duration, render func(*Tile)) *redrawScheduler {
	return &redrawScheduler{loop: loop, delay: delay, render: render}
}

func (s *redrawScheduler) Schedule(t *Tile) {
	s.queue = append(s.queue, t)
	if s.cancel == nil {
		s.cancel = s.loop.AfterFunc(s.delay, s.flush)
	}
}

func (s *redrawScheduler) flush() {
	s.cancel = nil
	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.render(t)
	}
}

// Pending is the number of queued redraws.
func (s *redrawScheduler) Pending() int { return len(s.queue) }

// Stop drops the queue and disarms the timer.
func (s *redrawScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.queue = nil
}
