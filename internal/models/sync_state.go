// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package models

import (
	"strconv"
	"strings"
	"time"
)

// SyncState tags a cached record with whether the server has confirmed it.
type SyncState string

const (
	// SyncStateSynced marks a record written from a confirmed server response.
	SyncStateSynced SyncState = "synced"

	// SyncStatePending marks a record written speculatively before confirmation.
	SyncStatePending SyncState = "pending"
)

// Valid reports whether s is one of the two known states. The empty state is
// accepted and means the record was never tagged.
func (s SyncState) Valid() bool {
	return s == "" || s == SyncStateSynced || s == SyncStatePending
}

// OfflineIDPrefix starts every locally synthesized identifier. Server IDs
// never carry it.
const OfflineIDPrefix = "offline-"

// NewOfflineID returns a synthetic identifier derived from t. Callers that
// may create several records within one clock tick must pass strictly
// increasing times.
func NewOfflineID(t time.Time) string {
	return OfflineIDPrefix + strconv.FormatInt(t.UnixNano(), 10)
}

// OfflineIDTime returns the timestamp an offline ID was derived from.
func OfflineIDTime(id string) (time.Time, bool) {
	if !IsOfflineID(id) {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(strings.TrimPrefix(id, OfflineIDPrefix), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, nanos).UTC(), true
}

// IsOfflineID reports whether id was synthesized locally.
func IsOfflineID(id string) bool {
	return strings.HasPrefix(id, OfflineIDPrefix)
}
