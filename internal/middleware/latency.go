// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/driftline/internal/logging"
)

// Sample is one recorded request.
type Sample struct {
	Route      string
	Method     string
	Duration   time.Duration
	StatusCode int
	At         time.Time
}

// RouteLatency summarizes the samples for one route.
type RouteLatency struct {
	Route    string  `json:"route"`
	Requests int     `json:"requests"`
	Errors   int     `json:"errors"`
	AvgMS    float64 `json:"avg_ms"`
	P50MS    int64   `json:"p50_ms"`
	P95MS    int64   `json:"p95_ms"`
	P99MS    int64   `json:"p99_ms"`
	MaxMS    int64   `json:"max_ms"`
}

// LatencyTracker keeps the most recent requests in a fixed-size window.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []Sample
	next    int
	full    bool
	slow    time.Duration
}

// NewLatencyTracker creates a tracker holding up to window samples. Requests
// slower than slow are logged; zero disables that.
func NewLatencyTracker(window int, slow time.Duration) *LatencyTracker {
	if window <= 0 {
		window = 1000
	}
	return &LatencyTracker{samples: make([]Sample, window), slow: slow}
}

// Record adds a sample, overwriting the oldest once the window is full.
func (lt *LatencyTracker) Record(s Sample) {
	lt.mu.Lock()
	lt.samples[lt.next] = s
	lt.next = (lt.next + 1) % len(lt.samples)
	if lt.next == 0 {
		lt.full = true
	}
	lt.mu.Unlock()
}

// Len returns the number of samples held.
func (lt *LatencyTracker) Len() int {
	lt.mu.RLock()
	defer lt.mu.RUnlock()
	if lt.full {
		return len(lt.samples)
	}
	return lt.next
}

// Stats returns per-route summaries, busiest route first.
func (lt *LatencyTracker) Stats() []RouteLatency {
	lt.mu.RLock()
	n := lt.next
	if lt.full {
		n = len(lt.samples)
	}
	byRoute := make(map[string][]Sample)
	for _, s := range lt.samples[:n] {
		key := s.Method + " " + s.Route
		byRoute[key] = append(byRoute[key], s)
	}
	lt.mu.RUnlock()

	stats := make([]RouteLatency, 0, len(byRoute))
	for route, samples := range byRoute {
		durations := make([]int64, len(samples))
		var sum int64
		errs := 0
		for i, s := range samples {
			durations[i] = s.Duration.Milliseconds()
			sum += durations[i]
			if s.StatusCode >= 500 {
				errs++
			}
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		stats = append(stats, RouteLatency{
			Route:    route,
			Requests: len(samples),
			Errors:   errs,
			AvgMS:    float64(sum) / float64(len(samples)),
			P50MS:    percentile(durations, 0.50),
			P95MS:    percentile(durations, 0.95),
			P99MS:    percentile(durations, 0.99),
			MaxMS:    durations[len(durations)-1],
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Requests != stats[j].Requests {
			return stats[i].Requests > stats[j].Requests
		}
		return stats[i].Route < stats[j].Route
	})
	return stats
}

// Middleware records every request passing through it.
func (lt *LatencyTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		elapsed := time.Since(start)

		route := RoutePattern(r)
		lt.Record(Sample{
			Route:      route,
			Method:     r.Method,
			Duration:   elapsed,
			StatusCode: wrapper.statusCode,
			At:         start,
		})

		if lt.slow > 0 && elapsed > lt.slow {
			logging.Warn().
				Str("method", r.Method).
				Str("route", route).
				Dur("duration", elapsed).
				Msg("Slow request detected")
		}
	})
}

// percentile expects sorted input.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
