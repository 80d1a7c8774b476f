// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package store

import (
	"context"
	"errors"
	"strings"

	"github.com/goccy/go-json"
)

// Entity is implemented by values kept in collections. Entities are unique by ID
// within a collection.
type Entity interface {
	EntityID() string
}

// CollectionKey returns the raw key a collection snapshot is stored under.
func CollectionKey(name string) []byte {
	return []byte(PrefixCache + name)
}

// ReadCollection returns the last written snapshot of a collection.
// A collection that was never written reads as an empty, non-nil slice.
func ReadCollection[T any](ctx context.Context, s *Store, name string) ([]T, error) {
	if name == "" {
		return nil, ErrEmptyCollection
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := []T{}
	err := s.View("read_collection", func(tx *Tx) error {
		var err error
		items, err = readItems[T](tx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// WriteCollection replaces the whole snapshot of a collection in one transaction.
// If T is an Entity, duplicate IDs are collapsed: the first position wins, the
// last value wins.
func WriteCollection[T any](ctx context.Context, s *Store, name string, items []T) error {
	if name == "" {
		return ErrEmptyCollection
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lockCollection(name)
	defer unlock()

	items = dedupe(items)
	return s.Update("write_collection", func(tx *Tx) error {
		return writeItems(tx, name, items)
	})
}

// UpsertItem replaces the item with the same ID or appends it, and returns the
// resulting snapshot. Upserts on the same collection are serialized.
func UpsertItem[T Entity](ctx context.Context, s *Store, name string, item T) ([]T, error) {
	if name == "" {
		return nil, ErrEmptyCollection
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockCollection(name)
	defer unlock()

	var merged []T
	err := s.Update("upsert_item", func(tx *Tx) error {
		items, err := readItems[T](tx, name)
		if err != nil {
			return err
		}
		merged = Upsert(items, item)
		return writeItems(tx, name, merged)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// Upsert replaces the element of items with item's ID, or appends item.
// The input slice is not modified.
func Upsert[T Entity](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	id := item.EntityID()
	replaced := false
	for _, existing := range items {
		if existing.EntityID() == id {
			if !replaced {
				out = append(out, item)
				replaced = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

// RemoveItem drops the item with id from a collection and returns the
// resulting snapshot. Removing a missing ID leaves the snapshot unchanged.
func RemoveItem[T Entity](ctx context.Context, s *Store, name, id string) ([]T, error) {
	if name == "" {
		return nil, ErrEmptyCollection
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockCollection(name)
	defer unlock()

	var kept []T
	err := s.Update("remove_item", func(tx *Tx) error {
		items, err := readItems[T](tx, name)
		if err != nil {
			return err
		}
		kept = make([]T, 0, len(items))
		for _, item := range items {
			if item.EntityID() != id {
				kept = append(kept, item)
			}
		}
		if len(kept) == len(items) {
			return nil
		}
		return writeItems(tx, name, kept)
	})
	if err != nil {
		return nil, err
	}
	return kept, nil
}

// DeleteCollection removes a collection snapshot. Missing collections are ignored.
func DeleteCollection(ctx context.Context, s *Store, name string) error {
	if name == "" {
		return ErrEmptyCollection
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lockCollection(name)
	defer unlock()

	return s.Update("delete_collection", func(tx *Tx) error {
		return tx.Delete(CollectionKey(name))
	})
}

// ListCollections returns the names of all stored collections in key order.
func ListCollections(ctx context.Context, s *Store) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := []string{}
	err := s.View("list_collections", func(tx *Tx) error {
		return tx.ScanKeys([]byte(PrefixCache), func(key []byte) error {
			names = append(names, strings.TrimPrefix(string(key), PrefixCache))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func readItems[T any](tx *Tx, name string) ([]T, error) {
	key := CollectionKey(name)
	raw, err := tx.Get(key)
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, tx.fail(key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func writeItems[T any](tx *Tx, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	key := CollectionKey(name)
	raw, err := json.Marshal(items)
	if err != nil {
		return tx.fail(key, err)
	}
	return tx.Set(key, raw)
}

// dedupe collapses items sharing an entity ID. Non-entity types pass through.
func dedupe[T any](items []T) []T {
	if len(items) < 2 {
		return items
	}
	pos := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		e, ok := any(item).(Entity)
		if !ok {
			return items
		}
		id := e.EntityID()
		if i, seen := pos[id]; seen {
			out[i] = item
			continue
		}
		pos[id] = len(out)
		out = append(out, item)
	}
	return out
}
