// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package middleware provides HTTP instrumentation for the local API.

  - PrometheusMetrics records request counts, durations and in-flight
    requests, labelled by chi route pattern so path parameters such as job
    IDs do not create new series.
  - LatencyTracker keeps a sliding window of recent request durations per
    route and reports percentiles at /api/v1/health/latency.

Both are chi-compatible func(http.Handler) http.Handler middleware.
*/
package middleware
