package engine

import "sync/atomic"

// Clock is the engine's monotonic frame counter.
//
// Every step takes the next frame from the clock; simulated time is derived
// from the frame and the frame rate, never from the wall clock, so a run
// replays identically. Restarting a prototype does not rewind the clock.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Only the engine's actor calls Next; readers may call Current from any
// goroutine.
type Clock struct {
	frame atomic.Int64
}

// NewClock creates a new clock starting at frame 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next frame is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.frame.Store(start)
	return c
}

// Next advances the clock and returns the new frame.
func (c *Clock) Next() int64 {
	return c.frame.Add(1)
}

// Current returns the last frame handed out without advancing.
func (c *Clock) Current() int64 {
	return c.frame.Load()
}
