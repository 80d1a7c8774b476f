// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is built on first use with WithRequiredStructEnabled
// and two custom tags:
//
//   - mutating_method: POST, PUT, PATCH or DELETE
//   - api_path: a path relative to the remote base URL ("/checkins", not "https://...")
//
// Error field names come from json tags, so messages line up with request bodies.
//
//	type CreateCheckInRequest struct {
//	    VenueID string `json:"venue_id" validate:"required,max=128"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
package validation
