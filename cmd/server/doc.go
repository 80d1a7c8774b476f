// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

// Package main is the entry point for the Driftline daemon.
//
// Driftline sits between a client application and a remote HTTP API. Writes
// that cannot reach the remote are persisted as mutation jobs in a local
// BadgerDB queue and replayed in order once connectivity returns. Read models
// are cached locally and refetched after every sync that confirmed work.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, environment (Koanf v2)
//  2. Store: BadgerDB with cache:, queue: and dead: namespaces
//  3. Queue: durable FIFO of mutation jobs plus the dead letter set
//  4. Remote client: rate limited, optionally behind a circuit breaker
//  5. Connectivity monitor and sync engine
//  6. Coordinators: check-ins and rewards, with their caches
//  7. WebSocket hub: pushes sync results and connectivity changes
//  8. HTTP server: the local REST API on chi
//
// Long-running pieces are supervised by suture in three layers:
//
//	driftline
//	├── data-layer: store-maintenance
//	├── sync-layer: connectivity, sync-engine, reconciler, websocket-hub, hub-bridge
//	└── api-layer:  http-server
//
// # Configuration
//
// Layered sources, highest priority wins:
//   - Environment variables (REMOTE_BASE_URL, SESSION_USER_ID, SYNC_MAX_ATTEMPTS, ...)
//   - Config file (config.yaml, or the path in CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The supervisor shuts every
// layer down within supervisor.shutdown_timeout. A flush in progress finishes
// its batch before the engine stops. The store is closed last.
//
// # Example Usage
//
//	export REMOTE_BASE_URL=https://api.example.com
//	export SESSION_USER_ID=u1
//	export STORE_PATH=/var/lib/driftline
//	./driftline
package main
