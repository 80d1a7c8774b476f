// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/driftline/internal/models"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/store"
)

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status        string      `json:"status"`
	Version       string      `json:"version"`
	Online        bool        `json:"online"`
	OnlineSince   time.Time   `json:"online_since"`
	Syncing       bool        `json:"syncing"`
	Breaker       string      `json:"breaker,omitempty"`
	Queue         queue.Stats `json:"queue"`
	Degraded      []string    `json:"degraded_caches,omitempty"`
	WSClients     int         `json:"ws_clients"`
	UptimeSeconds float64     `json:"uptime_seconds"`
}

// Version is overridden at build time with -ldflags.
var Version = "dev"

// Health reports the state of the local store, queue and connectivity.
// The endpoint answers 200 even when offline: being offline is a normal
// operating mode.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	status := HealthStatus{
		Status:        "healthy",
		Version:       Version,
		Online:        h.monitor.Online(),
		OnlineSince:   h.monitor.Since(),
		Syncing:       h.engine.Syncing(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.breaker != nil {
		status.Breaker = h.breaker.BreakerState()
	}
	if h.wsHub != nil {
		status.WSClients = h.wsHub.GetClientCount()
	}

	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		status.Status = "degraded"
	} else {
		status.Queue = stats
	}

	for _, name := range h.caches.Names() {
		if a, ok := h.caches.Get(name); ok && a.Degraded() {
			status.Degraded = append(status.Degraded, name)
		}
	}
	if len(status.Degraded) > 0 {
		status.Status = "degraded"
	}

	respondData(w, http.StatusOK, status, start, false)
}

// HealthLive answers as long as the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"status":         "alive",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}, time.Now(), false)
}

// HealthReady answers 503 when the local store cannot be read.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := h.store.View("health.ready", func(tx *store.Tx) error { return nil })
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status: models.StatusError,
			Error: &models.APIError{
				Code:    "NOT_READY",
				Message: "Local store unavailable",
			},
			Metadata: models.Metadata{Timestamp: time.Now()},
		})
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "ready"}, start, false)
}

// HealthLatency returns per-route latency percentiles from the in-memory
// sample window.
func (h *Handler) HealthLatency(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.latency == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Latency tracking disabled", nil)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"samples": h.latency.Len(),
		"routes":  h.latency.Stats(),
	}, start, false)
}
