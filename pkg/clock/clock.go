// Package clock abstracts wall-clock time and single-shot deferred callbacks.
//
// The cache schedules one removal callback per entry and cancels it whenever
// the entry is replaced, refreshed, or removed. Routing that through Clock lets
// tests drive expiry deterministically with Fake instead of sleeping.
package clock

import "time"

// Clock provides the current time and one-shot deferred execution.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d to elapse and then calls fn.
	// A non-positive d schedules fn as soon as possible, never inline.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a handle to a callback scheduled with AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or was already stopped.
	Stop() bool
}

// New returns a Clock backed by the time package.
func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(d, fn)
}
