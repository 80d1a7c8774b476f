// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package store is the durable local store backing the cache and the mutation queue.

It wraps a single BadgerDB instance and splits the key space into independent
namespaces:

	cache:<collection>            JSON array snapshot of one cached collection
	queue:job:<created>:<id>      one pending mutation job (see internal/queue)
	queue:idx:<id>                job ID -> job key
	dead:job:<created>:<id>       one dead-lettered job
	dead:idx:<id>                 dead letter ID -> key

Clearing one namespace never touches another.

# Failure Semantics

Every operation returns its error. Failures of the storage layer itself are
*StorageError values and are also published on Errors(), so a component that
decides to keep running on in-memory state still leaves the failure observable:

	go func() {
	    for serr := range st.Errors() {
	        log.Warn().Err(serr).Msg("storage degraded")
	    }
	}()

# Collections

ReadCollection, WriteCollection and UpsertItem are generic over the stored
type. A collection that was never written reads as empty. UpsertItem replaces
by Entity ID and never duplicates; upserts on one collection are serialized.

# Maintenance

Maintainer runs registered tasks (dead-letter expiry, gauge refresh) and then
value log GC on every GCInterval tick.
*/
package store
