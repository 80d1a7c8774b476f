// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/remote"
	"github.com/tomtom215/driftline/internal/store"
)

// Job kinds written by the coordinators.
const (
	KindCheckIn = "checkin"
	KindReward  = "reward"
)

// HeaderLocalID carries the optimistic record's ID on a queued job so the
// record can be matched to the job while it is still pending.
const HeaderLocalID = "X-Driftline-Local-Id"

// Remote API paths.
const (
	PathCheckIns      = "/api/checkins"
	PathRewardActions = "/api/rewards/actions"
	PathRewardBalance = "/api/rewards/balance"
)

// API is the part of the remote client the coordinators use.
type API interface {
	GetJSON(ctx context.Context, path string, out interface{}) error
	SendJSON(ctx context.Context, method, path string, in, out interface{}) error
}

// Connectivity reports the device's online flag.
type Connectivity interface {
	Online() bool
}

// Notifier is told when a coordinator rewrote a cached collection.
type Notifier interface {
	BroadcastCacheUpdated(collection string, items int)
}

type options struct {
	now      func() time.Time
	notifier Notifier
}

// Option configures a coordinator.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithNotifier reports cache rewrites to n.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) notify(collection string, items int) {
	if o.notifier != nil {
		o.notifier.BroadcastCacheUpdated(collection, items)
	}
}

// shouldFallBack reports whether a failed live write may be deferred to the
// queue. A status response proves the server was reached, so only transport
// failures qualify, and only while the device is flagged offline.
func shouldFallBack(err error, conn Connectivity) bool {
	var statusErr *remote.StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !conn.Online()
}

// queuedJobs returns the queued jobs of kind.
func queuedJobs(ctx context.Context, q *queue.Queue, kind string) ([]queue.Job, error) {
	jobs, err := q.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := jobs[:0]
	for _, job := range jobs {
		if job.Kind == kind {
			out = append(out, job)
		}
	}
	return out, nil
}

// logCacheError logs a cache failure the coordinator continues past. The
// accessor has already applied the write to its in-memory snapshot.
func logCacheError(err error, collection, op string) {
	if err == nil {
		return
	}
	ev := logging.Warn().Err(err).Str("collection", collection).Str("op", op)
	if store.IsStorageError(err) {
		ev.Bool("in_memory", true)
	}
	ev.Msg("Cache write failed")
}
