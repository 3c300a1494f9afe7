package testkit

import (
	"context"
	"sync"
	"time"
)

// Clock is a manual clock for code that takes now and sleep seams
// Sleep advances the clock instead of blocking, so waits finish instantly in tests
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	slept  []time.Duration
	onTick func(now time.Time)
}

// NewClock returns a Clock starting at start
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	fn, now := c.onTick, c.now
	c.mu.Unlock()
	if fn != nil {
		fn(now)
	}
}

// OnTick registers a hook run after every Advance
func (c *Clock) OnTick(fn func(now time.Time)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Sleep records d and advances the clock unless ctx is already done
func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	c.Advance(d)
	return ctx.Err()
}

// Slept returns every duration passed to Sleep so far
func (c *Clock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}
