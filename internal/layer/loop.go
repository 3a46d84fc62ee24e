// Package layer draws provider features onto viewport tiles. Every method
// runs on the loop that owns the map; provider calls are the only work done
// elsewhere and their results come back through Loop.Go.
package layer

import "time"

// Loop is the event loop a layer lives on.
type Loop interface {
	// AfterFunc runs f on the loop after d. cancel stops it if it has not
	// run yet.
	AfterFunc(d time.Duration, f func()) (cancel func())
	// Go runs work off the loop, then done on the loop.
	Go(work func(), done func())
}
