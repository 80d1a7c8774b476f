// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/driftline/internal/middleware"
)

// Router wires handlers to routes.
type Router struct {
	handler *Handler
	chiMW   *ChiMiddleware
}

// NewRouter creates a router. A nil middleware config uses the defaults.
func NewRouter(handler *Handler, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handler: handler,
		chiMW:   NewChiMiddleware(mwConfig),
	}
}

// SetupChi builds the HTTP handler.
//
// Middleware order: request ID, real IP, panic recovery, compression, CORS,
// Prometheus, latency tracking. Rate limits are applied per route group.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5, "application/json"))
	r.Use(router.chiMW.CORS())
	r.Use(middleware.PrometheusMetrics)
	if h.latency != nil {
		r.Use(h.latency.Middleware)
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())

		r.Route("/health", func(r chi.Router) {
			r.Get("/", h.Health)
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
			r.Get("/latency", h.HealthLatency)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMW.RateLimit())

			r.Get("/cache", h.CacheList)
			r.Get("/cache/{collection}", h.CacheGet)
			r.Delete("/cache/{collection}", h.CacheClear)

			r.Get("/queue", h.QueueList)
			r.Get("/queue/stats", h.QueueStats)
			r.Get("/queue/{id}", h.QueueGet)
			r.Delete("/queue/{id}", h.QueueRemove)
			r.Patch("/queue/{id}", h.QueueTouch)

			r.Get("/dead", h.DeadList)
			r.Delete("/dead", h.DeadPurge)
			r.Post("/dead/{id}/requeue", h.DeadRequeue)

			r.Get("/sync/status", h.SyncStatus)
			r.Get("/connectivity", h.ConnectivityGet)
			r.Put("/connectivity", h.ConnectivitySet)

			r.Get("/checkins", h.CheckInList)
			r.Get("/rewards/{userID}", h.RewardBalance)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMW.RateLimitWrite())

			r.Post("/queue", h.QueueEnqueue)
			r.Post("/sync/trigger", h.SyncTrigger)
			r.Post("/sync/refresh", h.SyncRefresh)

			r.Post("/checkins", h.CheckInCreate)
			r.Post("/checkins/refresh", h.CheckInRefresh)
			r.Post("/rewards/actions", h.RewardSubmit)
			r.Post("/rewards/{userID}/refresh", h.RewardRefresh)
		})
	})

	return r
}
