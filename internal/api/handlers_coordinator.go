// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/driftline/internal/models"
	"github.com/tomtom215/driftline/internal/store"
)

// writeStatus is 201 for a write the server confirmed and 202 for one that
// was queued for replay.
func writeStatus(state models.SyncState) int {
	if state == models.SyncStatePending {
		return http.StatusAccepted
	}
	return http.StatusCreated
}

// userParam resolves the user of a request: ?user_id, then the session user.
func (h *Handler) userParam(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	return h.sessionUserID()
}

// CheckInList returns cached check-ins, confirmed and pending.
func (h *Handler) CheckInList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.checkIns == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Check-ins not configured", nil)
		return
	}

	items, err := h.checkIns.List(r.Context())
	if err != nil && !store.IsStorageError(err) {
		respondDomainError(w, err)
		return
	}
	if items == nil {
		items = []models.CheckIn{}
	}
	respondData(w, http.StatusOK, items, start, true)
}

// CheckInCreate records a check-in, live when possible and queued when the
// device is offline. A missing user_id is taken from the session.
func (h *Handler) CheckInCreate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.checkIns == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Check-ins not configured", nil)
		return
	}

	var req models.CheckInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = h.sessionUserID()
	}

	ci, err := h.checkIns.Create(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, writeStatus(ci.SyncState), ci, start, false)
}

// CheckInRefresh replaces the cached check-ins with the server's list.
func (h *Handler) CheckInRefresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.checkIns == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Check-ins not configured", nil)
		return
	}
	userID := h.userParam(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user_id is required", nil)
		return
	}

	items, err := h.checkIns.Refresh(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, items, start, false)
}

// RewardBalance returns the cached balance of a user.
func (h *Handler) RewardBalance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.rewards == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Rewards not configured", nil)
		return
	}

	b, err := h.rewards.Balance(r.Context(), chi.URLParam(r, "userID"))
	if err != nil && !store.IsStorageError(err) {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, b, start, true)
}

// RewardSubmit applies a reward action. The returned balance already
// includes the action's points.
func (h *Handler) RewardSubmit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.rewards == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Rewards not configured", nil)
		return
	}

	var req models.RewardActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = h.sessionUserID()
	}

	res, err := h.rewards.Submit(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, writeStatus(res.Action.SyncState), res, start, false)
}

// RewardRefresh refetches a user's balance from the server.
func (h *Handler) RewardRefresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.rewards == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Rewards not configured", nil)
		return
	}

	b, err := h.rewards.Refresh(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, b, start, false)
}
