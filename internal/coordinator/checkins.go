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
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/driftline/internal/cache"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/metrics"
	"github.com/tomtom215/driftline/internal/models"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/store"
	"github.com/tomtom215/driftline/internal/validation"
)

// TagCheckIn sets a check-in's sync state.
func TagCheckIn(c models.CheckIn, state models.SyncState) models.CheckIn {
	c.SyncState = state
	return c
}

// CheckIns creates check-ins, falling back to the queue while offline.
type CheckIns struct {
	api   API
	conn  Connectivity
	queue *queue.Queue
	cache *cache.Collection[models.CheckIn]
	ttl   time.Duration
	opts  options

	// offlineIDs stamps synthetic IDs; each one is strictly newer than the last.
	offlineIDs *queue.Clock
	seedIDs    sync.Once
}

// NewCheckIns creates the check-in coordinator. ttl is the expiry given to
// check-ins synthesized offline.
func NewCheckIns(s *store.Store, api API, q *queue.Queue, conn Connectivity, ttl time.Duration, opts ...Option) *CheckIns {
	o := buildOptions(opts)
	return &CheckIns{
		api:        api,
		conn:       conn,
		queue:      q,
		cache:      cache.New[models.CheckIn](s, models.CollectionCheckIns, TagCheckIn),
		ttl:        ttl,
		opts:       o,
		offlineIDs: queue.NewClock(o.now),
	}
}

// Collection exposes the cached check-ins.
func (c *CheckIns) Collection() *cache.Collection[models.CheckIn] {
	return c.cache
}

// List returns the cached check-ins.
func (c *CheckIns) List(ctx context.Context) ([]models.CheckIn, error) {
	return c.cache.Read(ctx)
}

// Create posts a check-in. If the request cannot reach the server while the
// device is offline, a pending check-in with an offline- ID is cached, the
// request is queued for replay and the pending check-in is returned.
// Server-side failures are returned unchanged.
func (c *CheckIns) Create(ctx context.Context, req models.CheckInRequest) (models.CheckIn, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return models.CheckIn{}, verr
	}

	var confirmed models.CheckIn
	err := c.api.SendJSON(ctx, http.MethodPost, PathCheckIns, req, &confirmed)
	if err == nil {
		confirmed = c.normalize(confirmed, req)
		items, cacheErr := c.cache.UpsertConfirmed(ctx, confirmed)
		logCacheError(cacheErr, models.CollectionCheckIns, "upsert")
		metrics.RecordCoordinatorWrite(models.CollectionCheckIns, "live")
		c.opts.notify(models.CollectionCheckIns, len(items))
		return TagCheckIn(confirmed, models.SyncStateSynced), nil
	}

	if !shouldFallBack(err, c.conn) {
		metrics.RecordCoordinatorWrite(models.CollectionCheckIns, "error")
		return models.CheckIn{}, fmt.Errorf("create check-in: %w", err)
	}
	return c.createOffline(ctx, req, err)
}

func (c *CheckIns) createOffline(ctx context.Context, req models.CheckInRequest, cause error) (models.CheckIn, error) {
	c.seedIDs.Do(func() { c.seedOfflineIDs(ctx) })
	now := c.opts.now().UTC()
	pending := models.CheckIn{
		ID:        models.NewOfflineID(c.offlineIDs.Next()),
		UserID:    req.UserID,
		VenueID:   req.VenueID,
		Message:   req.Message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
		SyncState: models.SyncStatePending,
	}

	items, cacheErr := c.cache.UpsertPending(ctx, pending)
	logCacheError(cacheErr, models.CollectionCheckIns, "upsert")

	body, err := json.Marshal(req)
	if err != nil {
		return models.CheckIn{}, fmt.Errorf("encode check-in: %w", err)
	}
	job, err := c.queue.Enqueue(ctx, queue.NewJob{
		Endpoint: PathCheckIns,
		Method:   http.MethodPost,
		Body:     body,
		Headers:  map[string]string{HeaderLocalID: pending.ID},
		Kind:     KindCheckIn,
	})
	if err != nil {
		// Without a queued job nothing would ever confirm the record.
		_, _ = c.cache.Remove(ctx, pending.ID)
		metrics.RecordCoordinatorWrite(models.CollectionCheckIns, "error")
		return models.CheckIn{}, fmt.Errorf("queue check-in: %w", err)
	}

	metrics.RecordCoordinatorWrite(models.CollectionCheckIns, "queued")
	c.opts.notify(models.CollectionCheckIns, len(items))
	logging.Info().
		Err(cause).
		Str("checkin_id", pending.ID).
		Str("job_id", job.ID).
		Str("user_id", req.UserID).
		Msg("Offline, check-in queued")
	return pending, nil
}

// seedOfflineIDs moves the ID clock past every offline ID already cached, so
// IDs stay unique across restarts.
func (c *CheckIns) seedOfflineIDs(ctx context.Context) {
	cached, _ := c.cache.Read(ctx)
	for _, ci := range cached {
		if t, ok := models.OfflineIDTime(ci.ID); ok {
			c.offlineIDs.AdvanceTo(t)
		}
	}
}

// normalize fills fields the server may omit.
func (c *CheckIns) normalize(ci models.CheckIn, req models.CheckInRequest) models.CheckIn {
	if ci.UserID == "" {
		ci.UserID = req.UserID
	}
	if ci.VenueID == "" {
		ci.VenueID = req.VenueID
	}
	if ci.Message == "" {
		ci.Message = req.Message
	}
	if ci.CreatedAt.IsZero() {
		ci.CreatedAt = c.opts.now().UTC()
	}
	if ci.ExpiresAt.IsZero() {
		ci.ExpiresAt = ci.CreatedAt.Add(c.ttl)
	}
	return ci
}

// Refresh fetches the user's canonical check-ins and replaces the cached
// collection with them. Pending check-ins are kept only while their job is
// still queued; every other optimistic record is superseded.
func (c *CheckIns) Refresh(ctx context.Context, userID string) ([]models.CheckIn, error) {
	var canonical []models.CheckIn
	err := c.api.GetJSON(ctx, PathCheckIns+"?user_id="+url.QueryEscape(userID), &canonical)
	metrics.RecordCoordinatorRefresh(models.CollectionCheckIns, err)
	if err != nil {
		return nil, fmt.Errorf("fetch check-ins: %w", err)
	}

	snapshot := make([]models.CheckIn, 0, len(canonical))
	for _, ci := range canonical {
		snapshot = append(snapshot, TagCheckIn(ci, models.SyncStateSynced))
	}

	stillQueued, err := c.queuedLocalIDs(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Could not read queue during check-in refresh")
	}
	cached, _ := c.cache.Read(ctx)
	kept := 0
	for _, ci := range cached {
		if ci.Pending() && stillQueued[ci.ID] {
			snapshot = append(snapshot, ci)
			kept++
		}
	}

	cacheErr := c.cache.Write(ctx, snapshot)
	logCacheError(cacheErr, models.CollectionCheckIns, "replace")
	c.opts.notify(models.CollectionCheckIns, len(snapshot))

	logging.Debug().
		Str("user_id", userID).
		Int("canonical", len(canonical)).
		Int("pending_kept", kept).
		Msg("Check-ins refreshed")
	return snapshot, nil
}

func (c *CheckIns) queuedLocalIDs(ctx context.Context) (map[string]bool, error) {
	jobs, err := queuedJobs(ctx, c.queue, KindCheckIn)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		if id := job.Headers[HeaderLocalID]; id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}
