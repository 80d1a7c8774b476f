// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package cache

import (
	"context"
	"sort"
	"sync"
)

// Accessor is the type-erased view of a Collection.
type Accessor interface {
	Name() string
	Degraded() bool
	Snapshot(ctx context.Context) (interface{}, int, error)
	Clear(ctx context.Context) error
}

// Registry indexes the collections served by the process.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]Accessor
}

// NewRegistry creates a registry holding accessors.
func NewRegistry(accessors ...Accessor) *Registry {
	r := &Registry{collections: make(map[string]Accessor, len(accessors))}
	for _, a := range accessors {
		r.Register(a)
	}
	return r
}

// Register adds a, replacing any accessor with the same name.
func (r *Registry) Register(a Accessor) {
	r.mu.Lock()
	r.collections[a.Name()] = a
	r.mu.Unlock()
}

// Get returns the accessor for name.
func (r *Registry) Get(name string) (Accessor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.collections[name]
	return a, ok
}

// Names returns the registered collection names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
