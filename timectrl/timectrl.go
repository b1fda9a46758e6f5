package timectrl

import (
	"sync"
	"time"
)

// Clock is an abstraction over wall-clock time so that expiry logic
// (tile cache TTLs, staleness checks) can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to. Listeners are invoked
// after every change, outside the lock.
type ManualClock struct {
	mu        sync.RWMutex
	current   time.Time
	listeners []func(time.Time)
}

// NewManualClock constructs a clock fixed at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{current: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SetTime moves the clock to t.
func (c *ManualClock) SetTime(t time.Time) {
	c.mu.Lock()
	c.current = t
	listeners := append([]func(time.Time){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	listeners := append([]func(time.Time){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// AddListener registers a callback invoked whenever the clock moves.
func (c *ManualClock) AddListener(fn func(time.Time)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}
