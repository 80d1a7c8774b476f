// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package queue

import (
	"sync"
	"time"
)

// Clock stamps enqueue times. Every value returned by Next is strictly
// greater than the previous one, even when the wall clock stalls or steps
// backwards, so createdAt alone is a total order over the queue.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock creates a clock reading from now. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns the next timestamp, in UTC.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Round(0)
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// AdvanceTo moves the clock forward so Next never returns a value at or
// before t. Used to resume after a restart from the newest persisted job.
func (c *Clock) AdvanceTo(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.last) {
		c.last = t.UTC()
	}
}

// Current returns the last timestamp handed out.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
