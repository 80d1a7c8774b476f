// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package services

import (
	"context"
	"fmt"
)

// StartStopper is the lifecycle shared by the store maintainer, the
// connectivity monitor, the sync engine and the reconciler.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// LifecycleService adapts a StartStopper to suture's Serve pattern:
//  1. Start(ctx) spawns the component's goroutines
//  2. Serve blocks until ctx is cancelled
//  3. Stop() waits for the goroutines to exit
//
// A failed Start is returned so suture restarts the service with backoff.
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService wraps component under name.
//
//	engine := syncengine.New(q, client, policy)
//	tree.AddSyncService(services.NewLifecycleService("sync-engine", engine))
func NewLifecycleService(name string, component StartStopper) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// Serve implements suture.Service.
func (s *LifecycleService) Serve(ctx context.Context) error {
	// A previous run that panicked may have left the component running.
	if s.component.IsRunning() {
		s.component.Stop()
	}

	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *LifecycleService) String() string {
	return s.name
}
