// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/store"
)

// CacheSummary describes one cached collection.
type CacheSummary struct {
	Name     string `json:"name"`
	Items    int    `json:"items"`
	Degraded bool   `json:"degraded"`
}

// CacheView is the body of GET /cache/{collection}.
type CacheView struct {
	CacheSummary
	Data interface{} `json:"data"`
}

// CacheList summarizes every registered collection.
func (h *Handler) CacheList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	names := h.caches.Names()
	out := make([]CacheSummary, 0, len(names))
	for _, name := range names {
		a, ok := h.caches.Get(name)
		if !ok {
			continue
		}
		_, n, err := a.Snapshot(r.Context())
		if err != nil && !store.IsStorageError(err) {
			respondDomainError(w, err)
			return
		}
		out = append(out, CacheSummary{Name: name, Items: n, Degraded: a.Degraded()})
	}
	respondData(w, http.StatusOK, out, start, true)
}

// CacheGet returns the cached items of one collection. A store failure is
// reported through the degraded flag while the in-memory copy is served.
func (h *Handler) CacheGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "collection")
	a, ok := h.caches.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown collection", nil)
		return
	}

	items, n, err := a.Snapshot(r.Context())
	if err != nil && !store.IsStorageError(err) {
		respondDomainError(w, err)
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("collection", name).Msg("Serving in-memory cache snapshot")
	}
	respondData(w, http.StatusOK, CacheView{
		CacheSummary: CacheSummary{Name: name, Items: n, Degraded: a.Degraded()},
		Data:         items,
	}, start, true)
}

// CacheClear removes every entry of one collection.
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "collection")
	a, ok := h.caches.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown collection", nil)
		return
	}
	if err := a.Clear(r.Context()); err != nil {
		respondDomainError(w, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("collection", name).Msg("Cache collection cleared")
	respondData(w, http.StatusOK, map[string]string{"cleared": name}, start, false)
}
