// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package models defines the records Driftline caches and the HTTP envelope.

  - CheckIn / CheckInRequest: the "checkins" collection
  - RewardBalance / RewardAction / RewardActionRequest: the "rewards" collection
  - SyncState: "synced" for server-confirmed records, "pending" for optimistic ones
  - APIResponse / APIError / Metadata: response envelope of internal/api

Optimistic records use identifiers from NewOfflineID, which server-issued IDs
never collide with:

	id := models.NewOfflineID(time.Now()) // "offline-1767225600000000000"
	models.IsOfflineID(id)                 // true
*/
package models
