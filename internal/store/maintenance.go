// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package store

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/driftline/internal/logging"
)

// MaintenanceTask runs on every maintenance tick, before value log GC.
// Tasks report how many records they removed.
type MaintenanceTask struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Maintainer periodically runs maintenance tasks (dead-letter expiry, gauge
// refresh) followed by BadgerDB value log GC.
type Maintainer struct {
	store    *Store
	interval time.Duration
	tasks    []MaintenanceTask

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	lastRun     time.Time
	lastRemoved int
}

// NewMaintainer creates a maintainer running every store GCInterval.
func NewMaintainer(s *Store, tasks ...MaintenanceTask) *Maintainer {
	interval := s.config.GCInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Maintainer{
		store:    s,
		interval: interval,
		tasks:    tasks,
	}
}

// Start begins the background loop. Calling Start on a running maintainer is a no-op.
func (m *Maintainer) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run()

	logging.Info().Dur("interval", m.interval).Int("tasks", len(m.tasks)).Msg("Store maintenance started")
	return nil
}

// Stop halts the loop and waits for an in-progress run to finish.
func (m *Maintainer) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("Store maintenance stopped")
}

// IsRunning reports whether the loop is active.
func (m *Maintainer) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Maintainer) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.RunNow(m.ctx)
		}
	}
}

// RunNow runs every task and then GC once, synchronously.
// It returns the number of records the tasks removed.
func (m *Maintainer) RunNow(ctx context.Context) int {
	start := time.Now()
	removed := 0

	for _, task := range m.tasks {
		n, err := task.Run(ctx)
		if err != nil {
			logging.Error().Err(err).Str("task", task.Name).Msg("Store maintenance task failed")
			continue
		}
		removed += n
	}

	if err := m.store.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Store value log GC failed")
	}
	m.store.Size()

	m.mu.Lock()
	m.lastRun = time.Now()
	m.lastRemoved = removed
	m.mu.Unlock()

	storeMaintenanceRuns.Inc()
	if removed > 0 {
		logging.Info().
			Int("removed", removed).
			Dur("duration", time.Since(start)).
			Msg("Store maintenance removed records")
	}
	return removed
}

// MaintenanceStats describes the last run.
type MaintenanceStats struct {
	LastRun     time.Time
	LastRemoved int
}

// Stats returns statistics from the last run.
func (m *Maintainer) Stats() MaintenanceStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MaintenanceStats{LastRun: m.lastRun, LastRemoved: m.lastRemoved}
}
