package core

import "time"

// Clock abstracts time for the engine so step pacing can be observed
// and tests don't have to sleep through full scenario durations.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// systemClock is the wall-clock implementation used outside tests.
type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall-clock Clock.
func SystemClock() Clock { return systemClock{} }
