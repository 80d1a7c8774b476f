// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package queue

import (
	"sync"
	"testing"
	"time"
)

func TestClock_StrictlyIncreasingWhenFrozen(t *testing.T) {
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return frozen })

	a := c.Next()
	b := c.Next()
	if !b.After(a) {
		t.Errorf("Next() = %v after %v, want strictly later", b, a)
	}
	if !a.Equal(frozen) {
		t.Errorf("first Next() = %v, want %v", a, frozen)
	}
}

func TestClock_WallClockStepsBack(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return now })

	first := c.Next()
	now = now.Add(-time.Hour)
	second := c.Next()
	if !second.After(first) {
		t.Errorf("clock went backwards: %v then %v", first, second)
	}
}

func TestClock_AdvanceTo(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return base })

	persisted := base.Add(time.Minute)
	c.AdvanceTo(persisted)
	if got := c.Next(); !got.After(persisted) {
		t.Errorf("Next() = %v, want after %v", got, persisted)
	}

	// Moving backwards is ignored
	c.AdvanceTo(base)
	if c.Current().Before(persisted) {
		t.Errorf("AdvanceTo moved the clock backwards to %v", c.Current())
	}
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClock(nil)
	const n = 200

	var mu sync.Mutex
	seen := make(map[int64]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := c.Next().UnixNano()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d distinct timestamps, got %d", n, len(seen))
	}
}
