// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/driftline/internal/cache"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/metrics"
	"github.com/tomtom215/driftline/internal/models"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/store"
	"github.com/tomtom215/driftline/internal/validation"
)

// TagRewardBalance sets a balance's sync state.
func TagRewardBalance(b models.RewardBalance, state models.SyncState) models.RewardBalance {
	b.SyncState = state
	return b
}

// balanceResponse is the server's view of a user's points.
type balanceResponse struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
}

// Rewards submits reward actions and keeps the cached points balance.
//
// A server total (a refetch or a live response) resets the balance to that
// total plus the points of reward jobs still queued for the user, so a
// canonical refetch replaces the optimistic adjustment rather than adding
// to it. Between server totals the displayed balance only moves by the
// delta of each submission. Jobs that replayed after the last server total
// have left the queue but are not yet in Confirmed, so recomputing from
// Confirmed there would drop them.
type Rewards struct {
	api   API
	conn  Connectivity
	queue *queue.Queue
	cache *cache.Collection[models.RewardBalance]
	opts  options

	// mu serializes read-modify-write cycles on the cached balances.
	mu sync.Mutex
}

// NewRewards creates the reward coordinator.
func NewRewards(s *store.Store, api API, q *queue.Queue, conn Connectivity, opts ...Option) *Rewards {
	return &Rewards{
		api:   api,
		conn:  conn,
		queue: q,
		cache: cache.New[models.RewardBalance](s, models.CollectionRewards, TagRewardBalance),
		opts:  buildOptions(opts),
	}
}

// Collection exposes the cached balances.
func (r *Rewards) Collection() *cache.Collection[models.RewardBalance] {
	return r.cache
}

// Balance returns the cached balance for userID. A user with no cached
// balance has zero points.
func (r *Rewards) Balance(ctx context.Context, userID string) (models.RewardBalance, error) {
	items, err := r.cache.Read(ctx)
	for _, b := range items {
		if b.UserID == userID {
			return b, err
		}
	}
	return models.RewardBalance{UserID: userID, SyncState: models.SyncStateSynced}, err
}

// Submit applies req's points to the cached balance immediately, then posts
// the action. While offline the action is queued and the adjusted balance
// stands until the next refresh. A server-side failure reverts the
// adjustment and is returned.
func (r *Rewards) Submit(ctx context.Context, req models.RewardActionRequest) (models.RewardActionResult, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return models.RewardActionResult{}, verr
	}

	action := models.RewardAction{
		ID:        newActionID(),
		UserID:    req.UserID,
		Action:    req.Action,
		Points:    req.Points,
		Reference: req.Reference,
		CreatedAt: r.opts.now().UTC(),
	}

	r.adjust(ctx, req.UserID, req.Points)

	var srv balanceResponse
	err := r.api.SendJSON(ctx, http.MethodPost, PathRewardActions, action, &srv)
	if err == nil {
		action.SyncState = models.SyncStateSynced
		bal := r.reconcile(ctx, req.UserID, srv.Points)
		metrics.RecordCoordinatorWrite(models.CollectionRewards, "live")
		return models.RewardActionResult{Action: action, Balance: bal}, nil
	}

	if !shouldFallBack(err, r.conn) {
		r.revert(ctx, req.UserID, req.Points)
		metrics.RecordCoordinatorWrite(models.CollectionRewards, "error")
		return models.RewardActionResult{}, fmt.Errorf("submit reward action: %w", err)
	}

	body, encErr := json.Marshal(action)
	if encErr != nil {
		r.revert(ctx, req.UserID, req.Points)
		return models.RewardActionResult{}, fmt.Errorf("encode reward action: %w", encErr)
	}
	job, qErr := r.queue.Enqueue(ctx, queue.NewJob{
		Endpoint: PathRewardActions,
		Method:   http.MethodPost,
		Body:     body,
		Headers:  map[string]string{HeaderLocalID: action.ID},
		Kind:     KindReward,
	})
	if qErr != nil {
		r.revert(ctx, req.UserID, req.Points)
		metrics.RecordCoordinatorWrite(models.CollectionRewards, "error")
		return models.RewardActionResult{}, fmt.Errorf("queue reward action: %w", qErr)
	}

	action.SyncState = models.SyncStatePending
	bal, _ := r.Balance(ctx, req.UserID)
	metrics.RecordCoordinatorWrite(models.CollectionRewards, "queued")
	logging.Info().
		Err(err).
		Str("action_id", action.ID).
		Str("job_id", job.ID).
		Str("user_id", req.UserID).
		Int64("points", req.Points).
		Int64("balance", bal.Points).
		Msg("Offline, reward action queued")

	return models.RewardActionResult{Action: action, Balance: bal, Queued: true}, nil
}

// Refresh fetches the user's canonical total and rebuilds the cached balance
// from it.
func (r *Rewards) Refresh(ctx context.Context, userID string) (models.RewardBalance, error) {
	var srv balanceResponse
	err := r.api.GetJSON(ctx, PathRewardBalance+"?user_id="+url.QueryEscape(userID), &srv)
	metrics.RecordCoordinatorRefresh(models.CollectionRewards, err)
	if err != nil {
		return models.RewardBalance{}, fmt.Errorf("fetch reward balance: %w", err)
	}
	return r.reconcile(ctx, userID, srv.Points), nil
}

// adjust moves the displayed balance by delta and marks it pending.
func (r *Rewards) adjust(ctx context.Context, userID string, delta int64) models.RewardBalance {
	r.mu.Lock()
	defer r.mu.Unlock()

	bal, _ := r.Balance(ctx, userID)
	bal.Points += delta
	bal.UpdatedAt = r.opts.now().UTC()
	items, err := r.cache.UpsertPending(ctx, bal)
	logCacheError(err, models.CollectionRewards, "adjust")
	r.opts.notify(models.CollectionRewards, len(items))
	bal.SyncState = models.SyncStatePending
	return bal
}

// revert takes back an adjustment whose action was neither accepted nor
// queued. The balance stays pending while it still differs from Confirmed
// or the user has queued reward jobs.
func (r *Rewards) revert(ctx context.Context, userID string, delta int64) models.RewardBalance {
	r.mu.Lock()
	defer r.mu.Unlock()

	bal, _ := r.Balance(ctx, userID)
	bal.Points -= delta
	bal.UpdatedAt = r.opts.now().UTC()

	_, pending, err := r.queuedPoints(ctx, userID)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Could not read queued reward actions")
	}
	bal.SyncState = models.SyncStateSynced
	if pending > 0 || bal.Points != bal.Confirmed {
		bal.SyncState = models.SyncStatePending
	}
	items, cacheErr := r.cache.Upsert(ctx, bal)
	logCacheError(cacheErr, models.CollectionRewards, "revert")
	r.opts.notify(models.CollectionRewards, len(items))
	return bal
}

// reconcile sets the user's balance to confirmed plus the points of their
// queued reward jobs.
func (r *Rewards) reconcile(ctx context.Context, userID string, confirmed int64) models.RewardBalance {
	r.mu.Lock()
	defer r.mu.Unlock()

	queued, pending, err := r.queuedPoints(ctx, userID)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Could not read queued reward actions")
	}

	state := models.SyncStateSynced
	if pending > 0 {
		state = models.SyncStatePending
	}
	bal := models.RewardBalance{
		UserID:    userID,
		Points:    confirmed + queued,
		Confirmed: confirmed,
		UpdatedAt: r.opts.now().UTC(),
		SyncState: state,
	}
	items, cacheErr := r.cache.Upsert(ctx, bal)
	logCacheError(cacheErr, models.CollectionRewards, "reconcile")
	r.opts.notify(models.CollectionRewards, len(items))
	return bal
}

// queuedPoints sums the points of reward jobs queued for userID.
func (r *Rewards) queuedPoints(ctx context.Context, userID string) (sum int64, count int, err error) {
	jobs, err := queuedJobs(ctx, r.queue, KindReward)
	if err != nil {
		return 0, 0, err
	}
	for _, job := range jobs {
		var action models.RewardAction
		if err := json.Unmarshal(job.Body, &action); err != nil {
			logging.Warn().Err(err).Str("job_id", job.ID).Msg("Skipping undecodable reward job")
			continue
		}
		if action.UserID != userID {
			continue
		}
		sum += action.Points
		count++
	}
	return sum, count, nil
}

func newActionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
