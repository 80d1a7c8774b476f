// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package cache is the typed accessor over cached collections in the local store.

A Collection[T] reads, replaces and upserts one named collection and owns the
sync state convention:

  - UpsertConfirmed and ReplaceConfirmed tag records "synced"
  - UpsertPending tags records "pending"

The accessor passes the tag through; it never interprets it.

Storage failures are returned to the caller and the collection continues on
an in-memory snapshot until the store recovers:

	items, err := checkins.Upsert(ctx, c)
	if store.IsStorageError(err) {
	    // items still includes c
	}
*/
package cache
