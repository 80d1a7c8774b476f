// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package cache

import (
	"context"
	"sync"

	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/metrics"
	"github.com/tomtom215/driftline/internal/models"
	"github.com/tomtom215/driftline/internal/store"
)

// Tagger returns item with its sync state set to state.
type Tagger[T any] func(item T, state models.SyncState) T

// Collection is a typed accessor for one named cache collection.
//
// Every operation returns the store error, if any. When the store fails, the
// collection keeps operating on its in-memory snapshot: reads return the last
// known snapshot and writes are applied to it, so callers that choose to
// ignore a *store.StorageError still see their own writes until restart.
type Collection[T store.Entity] struct {
	store *store.Store
	name  string
	tag   Tagger[T]

	mu       sync.RWMutex
	snapshot []T
	loaded   bool
	degraded bool
}

// New creates an accessor for collection name. tag may be nil, in which case
// the Confirmed/Pending helpers store items untouched.
func New[T store.Entity](s *store.Store, name string, tag Tagger[T]) *Collection[T] {
	return &Collection[T]{store: s, name: name, tag: tag}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Degraded reports whether the last store operation failed and the
// collection is serving its in-memory snapshot.
func (c *Collection[T]) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

// Read returns the collection. A collection that was never written is empty.
func (c *Collection[T]) Read(ctx context.Context) ([]T, error) {
	items, err := store.ReadCollection[T](ctx, c.store, c.name)
	if err != nil {
		if !store.IsStorageError(err) {
			return nil, err
		}
		return c.fallback(err, nil), err
	}
	c.remember(items)
	return items, nil
}

// Write replaces the whole collection.
func (c *Collection[T]) Write(ctx context.Context, items []T) error {
	err := store.WriteCollection(ctx, c.store, c.name, items)
	if err != nil {
		if !store.IsStorageError(err) {
			return err
		}
		c.fallback(err, func([]T) []T { return dedupe(items) })
		return err
	}
	c.remember(dedupe(items))
	metrics.RecordCacheWrite(c.name, "write", len(items))
	return nil
}

// Upsert replaces the item with the same ID or appends it, and returns the
// resulting collection.
func (c *Collection[T]) Upsert(ctx context.Context, item T) ([]T, error) {
	merged, err := store.UpsertItem(ctx, c.store, c.name, item)
	if err != nil {
		if !store.IsStorageError(err) {
			return nil, err
		}
		return c.fallback(err, func(cur []T) []T { return store.Upsert(cur, item) }), err
	}
	c.remember(merged)
	metrics.RecordCacheWrite(c.name, "upsert", len(merged))
	return merged, nil
}

// Remove drops the item with id.
func (c *Collection[T]) Remove(ctx context.Context, id string) ([]T, error) {
	kept, err := store.RemoveItem[T](ctx, c.store, c.name, id)
	if err != nil {
		if !store.IsStorageError(err) {
			return nil, err
		}
		return c.fallback(err, func(cur []T) []T { return without(cur, id) }), err
	}
	c.remember(kept)
	metrics.RecordCacheWrite(c.name, "remove", len(kept))
	return kept, nil
}

// Clear deletes the collection.
func (c *Collection[T]) Clear(ctx context.Context) error {
	err := store.DeleteCollection(ctx, c.store, c.name)
	if err != nil {
		if !store.IsStorageError(err) {
			return err
		}
		c.fallback(err, func([]T) []T { return []T{} })
		return err
	}
	c.remember([]T{})
	metrics.RecordCacheWrite(c.name, "clear", 0)
	return nil
}

// UpsertConfirmed upserts item tagged synced. Use it for records built from a
// server response.
func (c *Collection[T]) UpsertConfirmed(ctx context.Context, item T) ([]T, error) {
	return c.Upsert(ctx, c.tagged(item, models.SyncStateSynced))
}

// UpsertPending upserts item tagged pending. Use it for optimistic records.
func (c *Collection[T]) UpsertPending(ctx context.Context, item T) ([]T, error) {
	return c.Upsert(ctx, c.tagged(item, models.SyncStatePending))
}

// ReplaceConfirmed replaces the collection with a canonical server snapshot,
// tagging every item synced. Anything not in items, optimistic records
// included, is gone afterwards.
func (c *Collection[T]) ReplaceConfirmed(ctx context.Context, items []T) error {
	tagged := make([]T, 0, len(items))
	for _, item := range items {
		tagged = append(tagged, c.tagged(item, models.SyncStateSynced))
	}
	return c.Write(ctx, tagged)
}

func (c *Collection[T]) tagged(item T, state models.SyncState) T {
	if c.tag == nil {
		return item
	}
	return c.tag(item, state)
}

func (c *Collection[T]) remember(items []T) {
	c.mu.Lock()
	c.snapshot = append([]T(nil), items...)
	c.loaded = true
	c.degraded = false
	c.mu.Unlock()
}

// fallback records a storage failure, applies mutate to the in-memory
// snapshot and returns a copy of the result.
func (c *Collection[T]) fallback(err error, mutate func([]T) []T) []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.degraded = true
	if c.snapshot == nil {
		c.snapshot = []T{}
	}
	if mutate != nil {
		c.snapshot = mutate(c.snapshot)
	}
	metrics.RecordCacheFallback(c.name)
	logging.Warn().
		Err(err).
		Str("collection", c.name).
		Bool("snapshot_loaded", c.loaded).
		Int("items", len(c.snapshot)).
		Msg("Cache continuing in memory after storage error")

	return append([]T{}, c.snapshot...)
}

func dedupe[T store.Entity](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = store.Upsert(out, item)
	}
	return out
}

func without[T store.Entity](items []T, id string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item.EntityID() != id {
			out = append(out, item)
		}
	}
	return out
}

// Snapshot reads the collection for callers that do not know its item type.
func (c *Collection[T]) Snapshot(ctx context.Context) (interface{}, int, error) {
	items, err := c.Read(ctx)
	return items, len(items), err
}
