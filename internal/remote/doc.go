// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package remote is the HTTP client for the remote API that live writes go to
and queued jobs are replayed against.

Resilience:
  - Rate limiting: golang.org/x/time/rate token bucket (remote.rate_limit, remote.burst)
  - Circuit breaker: sony/gobreaker; opens on network errors and retryable statuses only
  - Timeouts: remote.timeout per request, plus the caller's context

Failures are classified for the sync engine and the coordinators:

	*StatusError   the server answered outside 2xx
	*NetworkError  no answer (DNS, dial, reset, timeout, open circuit)

IsRetryable is true for network errors, 5xx, 408 and 429. IsPermanent is true
for every other 4xx.

Replay sends a queued job verbatim plus two headers: Idempotency-Key (the job
ID) and X-Driftline-Attempt.
*/
package remote
