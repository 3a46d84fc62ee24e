package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// loopMsg carries a callback back onto the bubbletea update goroutine.
type loopMsg struct {
	call *loopCall
}

type loopCall struct {
	f         func()
	cancelled bool
	timer     *time.Timer
}

// teaLoop implements layer.Loop on top of a bubbletea program: timers and
// worker completions arrive as messages and run inside Update.
type teaLoop struct {
	send func(tea.Msg)
}

func (l *teaLoop) AfterFunc(d time.Duration, f func()) func() {
	c := &loopCall{f: f}
	c.timer = time.AfterFunc(d, func() { l.send(loopMsg{call: c}) })
	return func() {
		c.cancelled = true
		c.timer.Stop()
	}
}

func (l *teaLoop) Go(work, done func()) {
	c := &loopCall{f: done}
	go func() {
		work()
		l.send(loopMsg{call: c})
	}()
}

func (m loopMsg) run() {
	if m.call != nil && !m.call.cancelled {
		m.call.f()
	}
}
