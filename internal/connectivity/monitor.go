// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/metrics"
)

// Sources of a connectivity change.
const (
	SourceManual = "manual"
	SourceProbe  = "probe"
	SourceClient = "client"
)

// Event describes a transition of the online flag.
type Event struct {
	Online bool      `json:"online"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Handler receives transitions. Handlers run on the goroutine that caused the
// transition and must not block.
type Handler func(Event)

// Monitor holds the runtime's online flag. The flag changes through SetOnline
// (the UI reporting its network state) or through the optional probe loop.
type Monitor struct {
	mu       sync.RWMutex
	online   bool
	changed  time.Time
	handlers map[int]Handler
	nextID   int

	probeURL      string
	probeInterval time.Duration
	probeEnabled  bool
	http          *http.Client

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a monitor with the initial state from cfg.
func New(cfg config.ConnectivityConfig) *Monitor {
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	m := &Monitor{
		online:        cfg.StartOnline,
		changed:       time.Now(),
		handlers:      make(map[int]Handler),
		probeURL:      cfg.ProbeURL,
		probeInterval: cfg.ProbeInterval,
		probeEnabled:  cfg.ProbeEnabled && cfg.ProbeURL != "",
		http:          &http.Client{Timeout: timeout},
	}
	if cfg.StartOnline {
		metrics.ConnectivityOnline.Set(1)
	} else {
		metrics.ConnectivityOnline.Set(0)
	}
	return m
}

// Online reports the current flag.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Since returns when the flag last changed.
func (m *Monitor) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changed
}

// SetOnline sets the flag and notifies handlers when it changed.
// It reports whether a transition happened.
func (m *Monitor) SetOnline(online bool, source string) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	m.changed = time.Now()
	ev := Event{Online: online, Source: source, At: m.changed}
	handlers := make([]Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	metrics.SetOnline(online)
	logging.Info().Bool("online", online).Str("source", source).Msg("Connectivity changed")

	for _, h := range handlers {
		m.dispatch(h, ev)
	}
	return true
}

func (m *Monitor) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("Connectivity handler panicked")
		}
	}()
	h(ev)
}

// Subscribe registers h for transitions and returns a function removing it.
func (m *Monitor) Subscribe(h Handler) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = h
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

// Probe performs one health request against the probe URL. Any response
// below 500 means the remote is reachable.
func (m *Monitor) Probe(ctx context.Context) error {
	if m.probeURL == "" {
		return errors.New("no probe URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// ProbeOnce probes and updates the flag from the result.
func (m *Monitor) ProbeOnce(ctx context.Context) bool {
	err := m.Probe(ctx)
	if err != nil {
		logging.Debug().Err(err).Str("url", m.probeURL).Msg("Connectivity probe failed")
	}
	m.SetOnline(err == nil, SourceProbe)
	return err == nil
}

// Start runs the probe loop when probing is enabled. Without probing the
// flag only changes through SetOnline and Start is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running || !m.probeEnabled {
		m.mu.Unlock()
		return nil
	}
	interval := m.probeInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.probeLoop(interval)

	logging.Info().Str("url", m.probeURL).Dur("interval", interval).Msg("Connectivity probe started")
	return nil
}

// Stop halts the probe loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("Connectivity probe stopped")
}

// IsRunning reports whether the probe loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) probeLoop(interval time.Duration) {
	defer m.wg.Done()

	m.ProbeOnce(m.ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.ProbeOnce(m.ctx)
		}
	}
}
