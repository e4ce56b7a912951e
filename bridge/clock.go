package bridge

import "time"

// Clock abstracts time and one-shot timer creation so debounce behavior can
// be tested by advancing a virtual clock.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run after d. fn runs on its own goroutine
	// for the real clock and synchronously under Advance for fakes; either
	// way fn must do its own locking.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing.
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock returns the wall clock.
func SystemClock() Clock { return realClock{} }
