// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package coordinator implements the optimistic write paths for check-ins and
reward actions.

Each write is first attempted live. When the request cannot reach the server
and the connectivity monitor reports the device offline, the coordinator
caches an optimistic record tagged pending, queues the equivalent request
for replay and returns the optimistic record. A response from the server,
even an error status, is never treated as offline.

After every flush the Reconciler refetches canonical state:

  - check-ins are replaced wholesale with the server's list, keeping only
    pending check-ins whose job is still queued
  - reward balances are rebuilt as the confirmed server total plus the
    points of reward jobs still queued, so the optimistic adjustment is
    replaced rather than added a second time
*/
package coordinator
