// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

// Package connectivity tracks whether the client is online. Coordinators read
// the flag to decide on the offline fallback, and the sync engine subscribes
// to offline->online transitions to flush the queue.
package connectivity
