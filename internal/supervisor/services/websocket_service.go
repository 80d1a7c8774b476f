// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package services

import (
	"context"
	"fmt"
)

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService runs the hub's event loop. RunWithContext already
// has the Serve shape; the wrapper adds a name for logging.
type WebSocketHubService struct {
	hub  ContextHub
	name string
}

// NewWebSocketHubService wraps hub.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	return w.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (w *WebSocketHubService) String() string {
	return w.name
}

// AttachFunc subscribes something to event sources and returns the detach
// func. (*websocket.Hub).Attach bound to its signal and monitor fits.
type AttachFunc func(ctx context.Context) (func(), error)

// SubscriptionService keeps a subscription alive for as long as it is
// supervised. If attaching fails, suture retries with backoff.
type SubscriptionService struct {
	attach AttachFunc
	name   string
}

// NewSubscriptionService wraps attach under name.
func NewSubscriptionService(name string, attach AttachFunc) *SubscriptionService {
	return &SubscriptionService{attach: attach, name: name}
}

// Serve implements suture.Service.
func (s *SubscriptionService) Serve(ctx context.Context) error {
	detach, err := s.attach(ctx)
	if err != nil {
		return fmt.Errorf("%s attach failed: %w", s.name, err)
	}
	defer detach()

	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *SubscriptionService) String() string {
	return s.name
}
