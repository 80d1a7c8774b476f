// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package api provides the local HTTP API of Driftline.

The API is how a UI process on the same device drives the sync engine: it
reads cached collections, submits writes through the coordinators, reports
connectivity, inspects the mutation queue and dead letters, and triggers
flushes. Sync events are pushed over the /ws websocket.

Key Components:

  - Router: chi route table and middleware stack
  - Handler: request handlers over the queue, engine and coordinators
  - Response formatting: the models.APIResponse envelope on every endpoint
  - Error mapping: validation 400, unknown job 404, remote rejection 502,
    local store failure 503

Endpoints (/api/v1):

  - health, health/live, health/ready, health/latency
  - cache, cache/{collection}
  - queue, queue/stats, queue/{id}
  - dead, dead/{id}/requeue
  - sync/trigger, sync/status, sync/refresh
  - connectivity
  - checkins, checkins/refresh
  - rewards/actions, rewards/{userID}, rewards/{userID}/refresh

Writes through the coordinator endpoints answer 201 when the server
confirmed them and 202 when they were queued for replay.

Middleware:

  - RequestIDWithLogging: request and correlation IDs in the log context
  - CORS and rate limiting from go-chi/cors and go-chi/httprate
  - Prometheus request metrics labelled by route pattern
  - in-memory latency percentiles served at health/latency
*/
package api
