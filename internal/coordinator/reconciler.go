// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/syncengine"
)

// Reconciler refetches canonical state whenever a flush completes.
type Reconciler struct {
	signal   *syncengine.Signal
	checkIns *CheckIns
	rewards  *Rewards
	userID   string
	timeout  time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewReconciler creates a reconciler for the session user.
func NewReconciler(sig *syncengine.Signal, checkIns *CheckIns, rewards *Rewards, userID string, timeout time.Duration) *Reconciler {
	return &Reconciler{
		signal:   sig,
		checkIns: checkIns,
		rewards:  rewards,
		userID:   userID,
		timeout:  timeout,
	}
}

// Start subscribes to the sync complete signal.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("reconciler already running")
	}
	if r.userID == "" {
		logging.Warn().Msg("No session user configured, reconciler will not refetch")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	if err := r.signal.Subscribe(r.ctx, "reconciler", r.onSyncComplete); err != nil {
		r.cancel()
		return fmt.Errorf("subscribe reconciler: %w", err)
	}
	r.running = true
	logging.Info().Str("user_id", r.userID).Msg("Reconciler started")
	return nil
}

// Stop unsubscribes.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.cancel()
	r.running = false
	logging.Info().Msg("Reconciler stopped")
}

// IsRunning reports whether the reconciler is subscribed.
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) onSyncComplete(ctx context.Context, res syncengine.FlushResult) {
	if res.Succeeded == 0 && res.DeadLettered == 0 {
		logging.Debug().Str("trigger", string(res.Trigger)).Msg("Nothing confirmed, skipping refetch")
		return
	}
	if err := r.RefreshAll(ctx); err != nil {
		// Optimistic entries stay cached until the next successful refetch.
		logging.Warn().Err(err).Str("trigger", string(res.Trigger)).Msg("Post-sync refetch failed")
	}
}

// RefreshAll refetches every coordinator's collection for the session user.
func (r *Reconciler) RefreshAll(ctx context.Context) error {
	if r.userID == "" {
		return nil
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var errs []error
	if r.checkIns != nil {
		if _, err := r.checkIns.Refresh(ctx, r.userID); err != nil {
			errs = append(errs, err)
		}
	}
	if r.rewards != nil {
		if _, err := r.rewards.Refresh(ctx, r.userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
