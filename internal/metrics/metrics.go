// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package metrics

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_api_requests_total",
			Help: "Total number of local API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftline_api_request_duration_seconds",
			Help:    "Duration of local API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftline_api_active_requests",
			Help: "Current number of in-flight local API requests",
		},
	)

	// Remote API Metrics
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_remote_requests_total",
			Help: "Total number of requests sent to the remote API",
		},
		[]string{"method", "outcome"}, // outcome: 2xx, 4xx, 5xx, offline, rejected
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftline_remote_request_duration_seconds",
			Help:    "Duration of remote API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Sync Engine Metrics
	SyncFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_sync_flushes_total",
			Help: "Total number of flushes that replayed at least one job",
		},
		[]string{"trigger"},
	)

	SyncFlushesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftline_sync_flushes_coalesced_total",
			Help: "Total number of flush triggers coalesced into an in-flight flush",
		},
	)

	SyncFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "driftline_sync_flush_duration_seconds",
			Help:    "Duration of non-empty flushes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	SyncJobsReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_sync_jobs_replayed_total",
			Help: "Total number of replayed jobs by result",
		},
		[]string{"result"}, // succeeded, failed, dead_lettered, skipped
	)

	SyncLastComplete = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftline_sync_last_complete_timestamp",
			Help: "Unix timestamp of the last sync complete signal",
		},
	)

	// Connectivity Metrics
	ConnectivityOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftline_connectivity_online",
			Help: "1 when the remote API is believed reachable, 0 otherwise",
		},
	)

	ConnectivityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_connectivity_transitions_total",
			Help: "Total number of online/offline transitions",
		},
		[]string{"to"},
	)

	// Coordinator Metrics
	CoordinatorWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_coordinator_writes_total",
			Help: "Total number of coordinator writes by path",
		},
		[]string{"coordinator", "path"}, // path: live, queued, error
	)

	CoordinatorRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_coordinator_refreshes_total",
			Help: "Total number of coordinator refetches",
		},
		[]string{"coordinator", "result"},
	)

	// Cache Metrics
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_cache_writes_total",
			Help: "Total number of cache collection writes",
		},
		[]string{"collection", "op"}, // op: write, upsert
	)

	CacheFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_cache_fallbacks_total",
			Help: "Total number of cache operations served from memory after a storage error",
		},
		[]string{"collection"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "driftline_cache_entries",
			Help: "Current number of entities in a cache collection",
		},
		[]string{"collection"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftline_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftline_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "driftline_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "driftline_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftline_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records a local API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight local API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRemoteRequest records one outbound call. status is 0 when no response was received.
func RecordRemoteRequest(method string, status int, duration time.Duration, err error) {
	RemoteRequestsTotal.WithLabelValues(method, remoteOutcome(status, err)).Inc()
	RemoteRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func remoteOutcome(status int, err error) string {
	if status > 0 {
		return strconv.Itoa(status/100) + "xx"
	}
	if err == nil {
		return "unknown"
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr):
		return "offline"
	default:
		return "error"
	}
}

// RecordFlush records a non-empty flush and its per-job outcomes.
func RecordFlush(trigger string, duration time.Duration, succeeded, failed, deadLettered, skipped int) {
	SyncFlushesTotal.WithLabelValues(trigger).Inc()
	SyncFlushDuration.Observe(duration.Seconds())
	SyncJobsReplayed.WithLabelValues("succeeded").Add(float64(succeeded))
	SyncJobsReplayed.WithLabelValues("failed").Add(float64(failed))
	SyncJobsReplayed.WithLabelValues("dead_lettered").Add(float64(deadLettered))
	SyncJobsReplayed.WithLabelValues("skipped").Add(float64(skipped))
	SyncLastComplete.Set(float64(time.Now().Unix()))
}

// RecordFlushCoalesced records a trigger absorbed by an in-flight flush.
func RecordFlushCoalesced() {
	SyncFlushesCoalesced.Inc()
}

// SetOnline updates the connectivity gauge and counts the transition.
func SetOnline(online bool) {
	if online {
		ConnectivityOnline.Set(1)
		ConnectivityTransitions.WithLabelValues("online").Inc()
		return
	}
	ConnectivityOnline.Set(0)
	ConnectivityTransitions.WithLabelValues("offline").Inc()
}

// RecordCoordinatorWrite records whether a coordinator write went live, was queued or failed.
func RecordCoordinatorWrite(coordinator, path string) {
	CoordinatorWrites.WithLabelValues(coordinator, path).Inc()
}

// RecordCoordinatorRefresh records a refetch outcome.
func RecordCoordinatorRefresh(coordinator string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	CoordinatorRefreshes.WithLabelValues(coordinator, result).Inc()
}

// RecordCacheWrite records a cache write and the resulting collection size.
func RecordCacheWrite(collection, op string, entries int) {
	CacheWrites.WithLabelValues(collection, op).Inc()
	CacheEntries.WithLabelValues(collection).Set(float64(entries))
}

// RecordCacheFallback records a cache operation served from memory.
func RecordCacheFallback(collection string) {
	CacheFallbacks.WithLabelValues(collection).Inc()
}
