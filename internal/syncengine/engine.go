// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/driftline/internal/connectivity"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/metrics"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/remote"
)

// Trigger names what started a flush.
type Trigger string

const (
	TriggerStart    Trigger = "start"
	TriggerOnline   Trigger = "online"
	TriggerVisible  Trigger = "visible"
	TriggerManual   Trigger = "manual"
	TriggerInterval Trigger = "interval"
)

// ParseTrigger maps an external trigger name onto a Trigger.
// Unknown names are treated as manual.
func ParseTrigger(s string) Trigger {
	switch Trigger(s) {
	case TriggerStart, TriggerOnline, TriggerVisible, TriggerInterval:
		return Trigger(s)
	default:
		return TriggerManual
	}
}

// FlushResult summarizes one flush. It is also the payload of the sync
// complete signal.
type FlushResult struct {
	Trigger      Trigger       `json:"trigger"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
	Attempted    int           `json:"attempted"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	DeadLettered int           `json:"dead_lettered"`
	Skipped      int           `json:"skipped"`
	Coalesced    bool          `json:"coalesced"`
	Remaining    int           `json:"remaining"`
}

// Replayer re-issues a queued mutation against the remote API.
type Replayer interface {
	Replay(ctx context.Context, job queue.Job) (*remote.Response, error)
}

// Engine drains the mutation queue. At most one flush runs at a time;
// triggers that arrive while a flush is running are coalesced into it.
type Engine struct {
	queue    *queue.Queue
	replayer Replayer
	policy   Policy
	signal   *Signal
	online   func() bool
	now      func() time.Time

	retryInterval time.Duration
	flushOnStart  bool

	syncing atomic.Bool

	resultMu   sync.RWMutex
	lastResult *FlushResult

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSignal publishes every non-empty flush on sig.
func WithSignal(sig *Signal) Option {
	return func(e *Engine) { e.signal = sig }
}

// WithOnline gates the interval loop on connectivity.
func WithOnline(fn func() bool) Option {
	return func(e *Engine) { e.online = fn }
}

// WithClock overrides the wall clock used for backoff decisions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRetryInterval enables the periodic retry loop.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) { e.retryInterval = d }
}

// WithFlushOnStart flushes once when the engine starts.
func WithFlushOnStart(enabled bool) Option {
	return func(e *Engine) { e.flushOnStart = enabled }
}

// New creates an engine draining q through r.
func New(q *queue.Queue, r Replayer, p Policy, opts ...Option) *Engine {
	e := &Engine{
		queue:    q,
		replayer: r,
		policy:   p,
		online:   func() bool { return true },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Syncing reports whether a flush is in progress.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// LastResult returns the most recent non-coalesced flush, if any.
func (e *Engine) LastResult() (FlushResult, bool) {
	e.resultMu.RLock()
	defer e.resultMu.RUnlock()
	if e.lastResult == nil {
		return FlushResult{}, false
	}
	return *e.lastResult, true
}

// Flush replays queued jobs oldest first. If another flush is already
// running the call returns immediately with Coalesced set.
//
// Once started, a batch runs to completion even if ctx is cancelled.
// Each job either leaves the queue (success or dead letter) or stays with
// its attempt count bumped. A failure never stops the batch.
func (e *Engine) Flush(ctx context.Context, trigger Trigger) (FlushResult, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		metrics.RecordFlushCoalesced()
		logging.Debug().Str("trigger", string(trigger)).Msg("Flush already in progress, coalescing")
		return FlushResult{Trigger: trigger, Coalesced: true}, nil
	}

	res, err := e.drain(ctx, trigger)
	// Cleared before the signal goes out so a subscriber can start the next flush.
	e.syncing.Store(false)
	if err != nil || res.Attempted == 0 {
		return res, err
	}

	logging.Info().
		Str("trigger", string(trigger)).
		Int("attempted", res.Attempted).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("dead_lettered", res.DeadLettered).
		Int("remaining", res.Remaining).
		Dur("duration", res.Duration).
		Msg("Flush complete")
	if e.signal != nil {
		if err := e.signal.Publish(res); err != nil {
			logging.Warn().Err(err).Msg("Failed to publish sync complete signal")
		}
	}
	return res, nil
}

// drain replays one batch. The caller holds the syncing flag.
func (e *Engine) drain(ctx context.Context, trigger Trigger) (FlushResult, error) {
	res := FlushResult{Trigger: trigger, StartedAt: e.now().UTC()}
	start := time.Now()

	jobs, err := e.queue.List(ctx, e.policy.BatchSize)
	if err != nil {
		return res, fmt.Errorf("list queued jobs: %w", err)
	}
	if len(jobs) == 0 {
		return res, nil
	}

	batchCtx := context.WithoutCancel(ctx)
	for _, job := range jobs {
		if trigger == TriggerInterval && !e.policy.Due(job, e.now()) {
			res.Skipped++
			continue
		}
		res.Attempted++
		e.replayOne(batchCtx, job, &res)
	}

	res.Duration = time.Since(start)
	if stats, err := e.queue.Stats(batchCtx); err == nil {
		res.Remaining = stats.Depth
	}
	metrics.RecordFlush(string(trigger), res.Duration, res.Succeeded, res.Failed, res.DeadLettered, res.Skipped)

	e.resultMu.Lock()
	saved := res
	e.lastResult = &saved
	e.resultMu.Unlock()
	return res, nil
}

func (e *Engine) replayOne(ctx context.Context, job queue.Job, res *FlushResult) {
	replayCtx := ctx
	if e.policy.ReplayTimeout > 0 {
		var cancel context.CancelFunc
		replayCtx, cancel = context.WithTimeout(ctx, e.policy.ReplayTimeout)
		defer cancel()
	}

	_, err := e.replayer.Replay(replayCtx, job)
	if err == nil {
		if rmErr := e.queue.Remove(ctx, job.ID); rmErr != nil {
			// The job stays queued and will be replayed again; the
			// idempotency key lets the server drop the duplicate.
			logging.Error().Err(rmErr).Str("job_id", job.ID).Msg("Replayed job could not be removed")
		}
		res.Succeeded++
		return
	}

	res.Failed++
	attempts := job.Attempts + 1
	logging.Warn().
		Err(err).
		Str("job_id", job.ID).
		Str("method", job.Method).
		Str("endpoint", job.Endpoint).
		Int("attempts", attempts).
		Msg("Replay failed")

	touchErr := e.queue.Touch(ctx, job.ID, queue.Patch{
		Attempts:      attempts,
		LastError:     err.Error(),
		LastAttemptAt: e.now(),
	})
	if errors.Is(touchErr, queue.ErrJobNotFound) {
		return
	}
	if touchErr != nil {
		logging.Error().Err(touchErr).Str("job_id", job.ID).Msg("Failed to record replay attempt")
	}

	reason := e.policy.Verdict(attempts, err)
	if reason == "" {
		return
	}
	if _, buryErr := e.queue.Bury(ctx, job.ID, reason, remote.StatusCode(err)); buryErr != nil {
		if !errors.Is(buryErr, queue.ErrJobNotFound) {
			logging.Error().Err(buryErr).Str("job_id", job.ID).Msg("Failed to dead-letter job")
		}
		return
	}
	res.DeadLettered++
}

// Trigger starts a flush in the background and returns immediately. It
// reports false and drops the trigger when the engine is not running.
func (e *Engine) Trigger(trigger Trigger) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		logging.Debug().Str("trigger", string(trigger)).Msg("Sync engine not running, dropping trigger")
		return false
	}
	e.spawnFlush(trigger)
	return true
}

// spawnFlush must be called with e.mu held while running, so the WaitGroup
// is never added to once Stop has begun waiting.
func (e *Engine) spawnFlush(trigger Trigger) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := e.Flush(context.Background(), trigger); err != nil {
			logging.Error().Err(err).Str("trigger", string(trigger)).Msg("Background flush failed")
		}
	}()
}

// OnConnectivity flushes when the device comes back online.
func (e *Engine) OnConnectivity(ev connectivity.Event) {
	if ev.Online {
		e.Trigger(TriggerOnline)
	}
}

// Start runs the optional start flush and the retry loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("sync engine already running")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true

	if e.flushOnStart {
		e.spawnFlush(TriggerStart)
	}
	if e.retryInterval > 0 {
		e.wg.Add(1)
		go e.retryLoop()
	}

	logging.Info().
		Dur("retry_interval", e.retryInterval).
		Int("batch_size", e.policy.BatchSize).
		Int("max_attempts", e.policy.MaxAttempts).
		Msg("Sync engine started")
	return nil
}

// Stop halts the retry loop and waits for in-flight flushes.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	logging.Info().Msg("Sync engine stopped")
}

// IsRunning reports whether Start has been called without Stop.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) retryLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if !e.online() {
				continue
			}
			if _, err := e.Flush(e.ctx, TriggerInterval); err != nil {
				logging.Error().Err(err).Msg("Interval flush failed")
			}
		}
	}
}
