// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package services provides suture.Service wrappers for Driftline components.

Each wrapper translates a component's lifecycle into suture's Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTPServerService:
  - runs *http.Server and shuts it down with its own timeout

WebSocketHubService:
  - runs the hub event loop via RunWithContext

LifecycleService:
  - Start/Stop/IsRunning components: store maintainer, connectivity
    monitor, sync engine, reconciler

SubscriptionService:
  - keeps an event subscription alive, such as the hub bridge that
    forwards sync complete and connectivity events to websocket clients

Every wrapper implements fmt.Stringer so suture's log lines name it.
*/
package services
