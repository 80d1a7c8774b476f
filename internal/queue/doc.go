// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package queue is the durable mutation queue: writes that have not yet been
confirmed by the remote API.

Each Job is stored under queue:job:<created-at nanos>:<id>, so the key order
of the namespace is the replay order. A monotonic Clock guarantees CreatedAt
is strictly increasing even across restarts, and Touch rewrites a job in place
without moving it.

# Operations

	job, err := q.Enqueue(ctx, queue.NewJob{
	    Endpoint: "/api/checkins",
	    Method:   "POST",
	    Body:     body,
	})
	jobs, err := q.List(ctx, 100)            // FIFO
	err = q.Touch(ctx, job.ID, queue.Patch{Attempts: 1, LastError: "HTTP 503"})
	err = q.Remove(ctx, job.ID)              // idempotent

# Dead Letters

Jobs that should no longer be replayed are moved with Bury to the dead:
namespace. ListDead, Requeue and PurgeDead manage them; dead letters expire
after the store's DeadLetterTTL.
*/
package queue
