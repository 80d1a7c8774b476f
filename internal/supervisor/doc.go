// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package supervisor provides process supervision for Driftline using suture v4.

The tree isolates failures by layer:

	RootSupervisor ("driftline")
	├── DataSupervisor ("data-layer")
	│   └── store-maintainer (value log GC, dead letter expiry, queue gauges)
	├── SyncSupervisor ("sync-layer")
	│   ├── connectivity (probe loop, when enabled)
	│   ├── sync-engine (retry loop and flush on start)
	│   ├── reconciler (refetch after sync complete)
	│   ├── websocket-hub
	│   └── hub-bridge (signal and connectivity events to websocket clients)
	└── APISupervisor ("api-layer")
	    └── http-server

A crash in the sync layer does not take down the HTTP server, so cached reads
and queue inspection keep working while the engine restarts.

Supervisor events are logged through sutureslog on top of the zerolog-backed
slog handler from internal/logging.
*/
package supervisor
