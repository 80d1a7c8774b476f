// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/models"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/remote"
	"github.com/tomtom215/driftline/internal/store"
	"github.com/tomtom215/driftline/internal/validation"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// sanitizeLogValue escapes control characters so request values cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON writes the envelope. Responses describe local state that can
// change on the next flush, so they are never cacheable.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData writes a success envelope.
func respondData(w http.ResponseWriter, status int, data interface{}, start time.Time, cached bool) {
	respondJSON(w, status, &models.APIResponse{
		Status: models.StatusSuccess,
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Cached:      cached,
		},
	})
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: models.StatusError,
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondValidationError writes the field failures of a request struct.
func respondValidationError(w http.ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status: models.StatusError,
		Error: &models.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondDomainError maps an error from the queue, store, remote client or a
// coordinator onto a status code.
func respondDomainError(w http.ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	var serr *store.StorageError
	var stErr *remote.StatusError
	var netErr *remote.NetworkError

	switch {
	case errors.As(err, &verr):
		respondValidationError(w, verr)
	case errors.Is(err, queue.ErrJobNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	case errors.Is(err, queue.ErrInvalidJob), errors.Is(err, queue.ErrInvalidPatch), errors.Is(err, queue.ErrEmptyJobID):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.As(err, &stErr):
		respondJSON(w, http.StatusBadGateway, &models.APIResponse{
			Status: models.StatusError,
			Error: &models.APIError{
				Code:    "REMOTE_ERROR",
				Message: "Remote API rejected the request",
				Details: map[string]interface{}{"status_code": stErr.StatusCode},
			},
			Metadata: models.Metadata{Timestamp: time.Now()},
		})
	case errors.Is(err, remote.ErrCircuitOpen):
		respondError(w, http.StatusServiceUnavailable, "REMOTE_UNAVAILABLE", "Remote API circuit breaker is open", err)
	case errors.As(err, &netErr):
		respondError(w, http.StatusBadGateway, "REMOTE_UNREACHABLE", "Remote API unreachable", err)
	case errors.As(err, &serr):
		respondError(w, http.StatusServiceUnavailable, "STORAGE_ERROR", "Local store unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out", err)
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "CANCELED", "Request canceled", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}

// decodeBody reads a bounded JSON body into dst and validates it.
// It writes the error response itself and reports whether the caller
// should continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if !decodeJSON(w, r, dst) {
		return false
	}
	return validateRequest(w, dst)
}

// decodeJSON is decodeBody without validation, for requests that are
// completed from the session before validating.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body", err)
		return false
	}
	if len(body) > maxBodyBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large", nil)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", nil)
		return false
	}
	return true
}

// validateRequest validates a request struct and writes a 400 on failure.
func validateRequest(w http.ResponseWriter, req interface{}) bool {
	if verr := validation.ValidateStruct(req); verr != nil {
		respondValidationError(w, verr)
		return false
	}
	return true
}

// getIntParam parses a query parameter and clamps it to [minVal, maxVal].
func getIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < minVal {
		v = minVal
	}
	if maxVal > 0 && v > maxVal {
		v = maxVal
	}
	return v, nil
}

// getDurationParam parses a Go duration query parameter.
func getDurationParam(r *http.Request, name string, defaultVal time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration", name)
	}
	return d, nil
}

// getBoolParam reports whether a query parameter is set to a true value.
func getBoolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
