// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for store operations
var (
	// storeOpsTotal counts transactions by operation name.
	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftline_store_operations_total",
		Help: "Total number of store transactions by operation",
	}, []string{"op"})

	// storeOpLatency measures transaction latency.
	storeOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "driftline_store_operation_latency_seconds",
		Help:    "Store transaction latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"op"})

	// storeErrorsTotal counts storage errors by operation and namespace.
	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftline_store_errors_total",
		Help: "Total number of storage errors",
	}, []string{"op", "namespace"})

	// storeErrorsDropped counts errors not delivered because the Errors channel was full.
	storeErrorsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftline_store_errors_dropped_total",
		Help: "Total number of storage errors dropped because no one was reading the error channel",
	})

	// storeDBSizeBytes is the current BadgerDB size (LSM + value log).
	storeDBSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftline_store_db_size_bytes",
		Help: "BadgerDB database size in bytes",
	})

	// storeGCRuns counts value log GC runs.
	storeGCRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftline_store_gc_runs_total",
		Help: "Total number of BadgerDB value log GC runs",
	})

	// storeGCLatency measures value log GC latency.
	storeGCLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "driftline_store_gc_latency_seconds",
		Help:    "BadgerDB value log GC latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// storeMaintenanceRuns counts maintenance runs.
	storeMaintenanceRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftline_store_maintenance_runs_total",
		Help: "Total number of store maintenance runs",
	})
)
