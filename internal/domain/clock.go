package domain

import "time"

// Clock holds the current simulated time of a backtest run.
// It only moves forward, in fixed minute-sized steps.
type Clock struct {
	current time.Time
}

// NewClock creates a clock positioned at start.
func NewClock(start time.Time) *Clock {
	return &Clock{current: start.Truncate(time.Minute)}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	return c.current
}

// Advance moves the clock forward by the given number of minutes.
// Non-positive intervals are ignored, the clock never moves backwards.
func (c *Clock) Advance(minutes int) {
	if minutes <= 0 {
		return
	}
	c.current = c.current.Add(time.Duration(minutes) * time.Minute)
}

// Before reports whether the clock is still behind t.
func (c *Clock) Before(t time.Time) bool {
	return c.current.Before(t)
}
