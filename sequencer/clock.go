package sequencer

import "time"

// Clock is a monotonic time source that fires at absolute deadlines.
// Deadlines are offsets from the clock's origin, so a sequence of
// beat-aligned deadlines never accumulates scheduling drift.
type Clock interface {
	Now() time.Duration
	// At returns a channel that is closed once Now() >= deadline, and a
	// func that cancels the pending alarm.
	At(deadline time.Duration) (<-chan struct{}, func())
}

// MonotonicClock measures time on Go's monotonic clock reading
type MonotonicClock struct {
	origin time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.origin)
}

func (c *MonotonicClock) At(deadline time.Duration) (<-chan struct{}, func()) {
	ch := make(chan struct{})
	wait := deadline - c.Now()
	if wait <= 0 {
		close(ch)
		return ch, func() {}
	}
	timer := time.AfterFunc(wait, func() { close(ch) })
	return ch, func() { timer.Stop() }
}
