// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the mutation queue
var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftline_queue_depth",
		Help: "Number of mutation jobs waiting for replay",
	})

	queueDeadDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftline_queue_dead_letters",
		Help: "Number of dead-lettered mutation jobs",
	})

	queueOldestAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftline_queue_oldest_job_age_seconds",
		Help: "Age of the oldest queued mutation job in seconds",
	})

	queueEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftline_queue_enqueued_total",
		Help: "Total number of mutation jobs enqueued",
	})

	queueRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftline_queue_removed_total",
		Help: "Total number of mutation jobs removed after confirmation",
	})

	queueTouched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftline_queue_touched_total",
		Help: "Total number of retry bookkeeping updates",
	})

	// queueBuried counts dead letters by reason (max_attempts, permanent, manual).
	queueBuried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftline_queue_dead_lettered_total",
		Help: "Total number of jobs moved to the dead-letter list",
	}, []string{"reason"})

	queueRequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftline_queue_requeued_total",
		Help: "Total number of dead letters restored to the queue",
	})

	queuePurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftline_queue_dead_letters_purged_total",
		Help: "Total number of dead letters purged or expired",
	})
)
