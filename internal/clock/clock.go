// Package clock is the engine time source; tests swap it with Freeze.
package clock

import (
	"sync/atomic"
	"time"
)

var source atomic.Pointer[func() time.Time]

// Now returns the current engine time
func Now() time.Time {
	if fn := source.Load(); fn != nil {
		return (*fn)()
	}
	return time.Now()
}

// Since returns the time elapsed since t
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// Freeze pins Now to t until the returned restore function is called
func Freeze(t time.Time) (restore func()) {
	fn := func() time.Time { return t }
	previous := source.Swap(&fn)
	return func() { source.Store(previous) }
}
