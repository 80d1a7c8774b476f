// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package syncengine replays queued mutations against the remote API.

A flush reads the queue oldest first and replays each job in turn. A job
that succeeds (any 2xx) is removed. A job that fails stays queued with its
attempt count and last error updated, and the batch moves on to the next
job. Jobs that keep failing, or fail permanently, are moved to the dead
letter namespace according to the Policy.

Only one flush runs at a time. Triggers that arrive during a flush return
immediately and are satisfied by the running one; anything enqueued after
the batch was read is picked up by the next trigger.

After every flush that attempted at least one job the engine publishes a
FlushResult on the Signal. Coordinators subscribe to it and refresh their
cached collections from the server.

Triggers:

  - start: once at startup when sync.flush_on_start is set
  - online: a connectivity transition to online
  - visible, manual: POST /api/v1/sync/trigger
  - interval: the retry loop, which honours per-job backoff and is skipped
    while offline
*/
package syncengine
