// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package syncengine

import (
	"time"

	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/remote"
)

// Policy decides how failed replays are retried.
type Policy struct {
	// BatchSize is the number of jobs one flush reads. Zero reads the whole queue.
	BatchSize int

	// MaxAttempts buries a job once it has failed this many times. Zero never buries.
	MaxAttempts int

	// DeadLetterPermanent buries a job on its first permanent (4xx) failure.
	DeadLetterPermanent bool

	// RetryBackoff and MaxBackoff space out retries made by the interval loop.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration

	// ReplayTimeout bounds one replayed request. Zero means no bound beyond the client's.
	ReplayTimeout time.Duration
}

// PolicyFromConfig builds a Policy from the sync configuration section.
func PolicyFromConfig(cfg config.SyncConfig) Policy {
	return Policy{
		BatchSize:           cfg.BatchSize,
		MaxAttempts:         cfg.MaxAttempts,
		DeadLetterPermanent: cfg.DeadLetterPermanent,
		RetryBackoff:        cfg.RetryBackoff,
		MaxBackoff:          cfg.MaxBackoff,
		ReplayTimeout:       cfg.ReplayTimeout,
	}
}

// Backoff returns the delay before the next interval retry of a job that has
// failed attempts times: RetryBackoff * 2^(attempts-1), capped at MaxBackoff.
func (p Policy) Backoff(attempts int) time.Duration {
	if attempts <= 0 || p.RetryBackoff <= 0 {
		return 0
	}
	shift := attempts - 1
	if shift > 30 {
		shift = 30
	}
	d := p.RetryBackoff << uint(shift)
	if d <= 0 || (p.MaxBackoff > 0 && d > p.MaxBackoff) {
		return p.MaxBackoff
	}
	return d
}

// Due reports whether the interval loop may retry job at now.
func (p Policy) Due(job queue.Job, now time.Time) bool {
	if job.Attempts == 0 || job.LastAttemptAt == nil {
		return true
	}
	return !now.Before(job.LastAttemptAt.Add(p.Backoff(job.Attempts)))
}

// Verdict returns the dead-letter reason for a job that just failed its
// attempts-th replay with err, or "" to keep it queued.
func (p Policy) Verdict(attempts int, err error) string {
	if p.DeadLetterPermanent && remote.IsPermanent(err) {
		return queue.ReasonPermanent
	}
	if p.MaxAttempts > 0 && attempts >= p.MaxAttempts {
		return queue.ReasonMaxAttempts
	}
	return ""
}
