// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package metrics provides Prometheus metrics for the Driftline daemon.

Metrics are registered with promauto on the default registry and exposed by the
local API at /metrics. Storage and queue metrics live next to their code in
internal/store; everything that crosses package boundaries is defined here.

# Available Metrics

Local API:
  - driftline_api_requests_total{method,endpoint,status_code}
  - driftline_api_request_duration_seconds{method,endpoint}
  - driftline_api_active_requests

Remote API:
  - driftline_remote_requests_total{method,outcome}
  - driftline_remote_request_duration_seconds{method}

Sync engine:
  - driftline_sync_flushes_total{trigger}
  - driftline_sync_flushes_coalesced_total
  - driftline_sync_flush_duration_seconds
  - driftline_sync_jobs_replayed_total{result}
  - driftline_sync_last_complete_timestamp

Connectivity, coordinators and cache:
  - driftline_connectivity_online
  - driftline_connectivity_transitions_total{to}
  - driftline_coordinator_writes_total{coordinator,path}
  - driftline_coordinator_refreshes_total{coordinator,result}
  - driftline_cache_writes_total{collection,op}
  - driftline_cache_fallbacks_total{collection}
  - driftline_cache_entries{collection}

Circuit breaker (labelled by breaker name):
  - driftline_circuit_breaker_state (0=closed, 1=half-open, 2=open)
  - driftline_circuit_breaker_requests_total{result}
  - driftline_circuit_breaker_consecutive_failures
  - driftline_circuit_breaker_state_transitions_total{from_state,to_state}

# Usage

	start := time.Now()
	resp, err := client.Do(req)
	metrics.RecordRemoteRequest(req.Method, status, time.Since(start), err)
*/
package metrics
