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
	"github.com/tomtom215/driftline/internal/queue"
)

// TouchRequest is the body of PATCH /queue/{id}.
type TouchRequest struct {
	Attempts  int    `json:"attempts" validate:"gte=0"`
	LastError string `json:"last_error" validate:"max=2048"`
}

// QueueList returns queued jobs in replay order.
func (h *Handler) QueueList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, err := getIntParam(r, "limit", 100, 0, 1000)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	jobs, err := h.queue.List(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, jobs, start, false)
}

// QueueEnqueue appends a job. The job is replayed on the next flush.
// Enqueue normalizes the method and validates the job.
func (h *Handler) QueueEnqueue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var nj queue.NewJob
	if !decodeJSON(w, r, &nj) {
		return
	}

	job, err := h.queue.Enqueue(r.Context(), nj)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("job_id", job.ID).
		Str("method", job.Method).
		Str("endpoint", sanitizeLogValue(job.Endpoint)).
		Msg("Job enqueued over API")
	respondData(w, http.StatusCreated, job, start, false)
}

// QueueStats returns queue depth and age.
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, stats, start, false)
}

// QueueGet returns one queued job.
func (h *Handler) QueueGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	job, err := h.queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, job, start, false)
}

// QueueRemove deletes a job. Removing an unknown ID succeeds.
func (h *Handler) QueueRemove(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	if err := h.queue.Remove(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"removed": id}, start, false)
}

// QueueTouch records a replay attempt on a job.
func (h *Handler) QueueTouch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req TouchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	err := h.queue.Touch(r.Context(), id, queue.Patch{
		Attempts:      req.Attempts,
		LastError:     req.LastError,
		LastAttemptAt: time.Now(),
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	job, err := h.queue.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, job, start, false)
}

// DeadList returns dead letters, oldest first.
func (h *Handler) DeadList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, err := getIntParam(r, "limit", 100, 0, 1000)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	dead, err := h.queue.ListDead(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, dead, start, false)
}

// DeadRequeue moves a dead letter back to the queue with its attempts reset.
func (h *Handler) DeadRequeue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	job, err := h.queue.Requeue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, job, start, false)
}

// DeadPurge deletes dead letters older than ?older_than (default: all).
func (h *Handler) DeadPurge(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	olderThan, err := getDurationParam(r, "older_than", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	n, err := h.queue.PurgeDead(r.Context(), olderThan)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int{"purged": n}, start, false)
}
