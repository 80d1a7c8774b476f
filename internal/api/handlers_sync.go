// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/driftline/internal/connectivity"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/syncengine"
)

// SyncTriggerRequest is the body of POST /sync/trigger. The body is optional.
type SyncTriggerRequest struct {
	Trigger string `json:"trigger" validate:"omitempty,oneof=start online visible manual interval"`
}

// SyncStatus is the body of GET /sync/status.
type SyncStatus struct {
	Syncing    bool                    `json:"syncing"`
	Online     bool                    `json:"online"`
	LastResult *syncengine.FlushResult `json:"last_result,omitempty"`
}

// ConnectivityRequest is the body of PUT /connectivity.
type ConnectivityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// ConnectivityStatus is the body of the connectivity endpoints.
type ConnectivityStatus struct {
	Online  bool      `json:"online"`
	Since   time.Time `json:"since"`
	Changed bool      `json:"changed"`
}

// SyncTrigger starts a flush. With ?wait=true the flush runs in the request
// and its result is returned; otherwise the flush starts in the background
// and the endpoint answers 202, or 503 while the engine is stopped.
func (h *Handler) SyncTrigger(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := SyncTriggerRequest{Trigger: string(syncengine.TriggerManual)}
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	trigger := syncengine.ParseTrigger(req.Trigger)

	if !getBoolParam(r, "wait") {
		if !h.engine.Trigger(trigger) {
			respondError(w, http.StatusServiceUnavailable, "SYNC_STOPPED", "Sync engine is not running", nil)
			return
		}
		respondData(w, http.StatusAccepted, map[string]string{"trigger": string(trigger)}, start, false)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.flushTimeout())
	defer cancel()
	res, err := h.engine.Flush(ctx, trigger)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, res, start, false)
}

// SyncStatus reports whether a flush is running and the last batch result.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := SyncStatus{
		Syncing: h.engine.Syncing(),
		Online:  h.monitor.Online(),
	}
	if res, ok := h.engine.LastResult(); ok {
		status.LastResult = &res
	}
	respondData(w, http.StatusOK, status, start, false)
}

// SyncRefresh refetches every coordinator's collection from the remote API.
func (h *Handler) SyncRefresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.reconciler == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Reconciler not configured", nil)
		return
	}
	if err := h.reconciler.RefreshAll(r.Context()); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"refreshed": true}, start, false)
}

// ConnectivityGet reports the connectivity flag.
func (h *Handler) ConnectivityGet(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, ConnectivityStatus{
		Online: h.monitor.Online(),
		Since:  h.monitor.Since(),
	}, time.Now(), false)
}

// ConnectivitySet lets the client report a connectivity change. Going online
// triggers a flush through the monitor's subscribers.
func (h *Handler) ConnectivitySet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req ConnectivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	changed := h.monitor.SetOnline(*req.Online, connectivity.SourceClient)
	if changed {
		logging.Ctx(r.Context()).Info().Bool("online", *req.Online).Msg("Connectivity reported by client")
	}
	respondData(w, http.StatusOK, ConnectivityStatus{
		Online:  h.monitor.Online(),
		Since:   h.monitor.Since(),
		Changed: changed,
	}, start, false)
}
