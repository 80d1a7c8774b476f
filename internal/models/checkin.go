// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package models

import "time"

// CollectionCheckIns is the cache collection holding check-ins.
const CollectionCheckIns = "checkins"

// CheckIn is a user's presence at a venue. A pending check-in has an
// offline- ID and is replaced by its server counterpart on the next refetch.
type CheckIn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	VenueID   string    `json:"venue_id"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	SyncState SyncState `json:"sync_state,omitempty"`
}

// EntityID implements store.Entity.
func (c CheckIn) EntityID() string { return c.ID }

// Pending reports whether the check-in awaits server confirmation.
func (c CheckIn) Pending() bool {
	return c.SyncState == SyncStatePending
}

// Expired reports whether the check-in has lapsed at now.
func (c CheckIn) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// CheckInRequest is the body of a check-in write. It carries the user ID so
// a replayed request does not depend on the session that queued it.
type CheckInRequest struct {
	UserID  string `json:"user_id" validate:"required,max=128"`
	VenueID string `json:"venue_id" validate:"required,max=128"`
	Message string `json:"message,omitempty" validate:"max=280"`
}
