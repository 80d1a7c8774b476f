// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/driftline/internal/cache"
	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/connectivity"
	"github.com/tomtom215/driftline/internal/coordinator"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/middleware"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/store"
	"github.com/tomtom215/driftline/internal/syncengine"
	ws "github.com/tomtom215/driftline/internal/websocket"
)

// BreakerReporter exposes the remote client's circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// Deps are the components the HTTP API reads and drives. Store, Queue,
// Engine and Monitor are required; the rest may be nil and their routes
// answer 503.
type Deps struct {
	Config     *config.Config
	Store      *store.Store
	Queue      *queue.Queue
	Engine     *syncengine.Engine
	Monitor    *connectivity.Monitor
	CheckIns   *coordinator.CheckIns
	Rewards    *coordinator.Rewards
	Reconciler *coordinator.Reconciler
	Caches     *cache.Registry
	Hub        *ws.Hub
	Latency    *middleware.LatencyTracker
	Breaker    BreakerReporter
}

// Handler serves the local sync API.
type Handler struct {
	config     *config.Config
	store      *store.Store
	queue      *queue.Queue
	engine     *syncengine.Engine
	monitor    *connectivity.Monitor
	checkIns   *coordinator.CheckIns
	rewards    *coordinator.Rewards
	reconciler *coordinator.Reconciler
	caches     *cache.Registry
	wsHub      *ws.Hub
	latency    *middleware.LatencyTracker
	breaker    BreakerReporter
	startTime  time.Time
}

// NewHandler creates a Handler.
func NewHandler(d Deps) *Handler {
	caches := d.Caches
	if caches == nil {
		caches = cache.NewRegistry()
	}
	return &Handler{
		config:     d.Config,
		store:      d.Store,
		queue:      d.Queue,
		engine:     d.Engine,
		monitor:    d.Monitor,
		checkIns:   d.CheckIns,
		rewards:    d.Rewards,
		reconciler: d.Reconciler,
		caches:     caches,
		wsHub:      d.Hub,
		latency:    d.Latency,
		breaker:    d.Breaker,
		startTime:  time.Now(),
	}
}

// sessionUserID is the configured user, or "" when none is set.
func (h *Handler) sessionUserID() string {
	if h.config == nil {
		return ""
	}
	return h.config.Session.UserID
}

// flushTimeout bounds a synchronous flush requested over HTTP.
func (h *Handler) flushTimeout() time.Duration {
	if h.config == nil || h.config.Server.Timeout <= 0 {
		return 30 * time.Second
	}
	return h.config.Server.Timeout
}

// getUpgrader creates a WebSocket upgrader with origin checking.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts only origins listed in server.cors_origins.
// Requests without an Origin header come from local tools and are accepted.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.config == nil {
		return true
	}

	for _, allowed := range h.config.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and registers the client with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
