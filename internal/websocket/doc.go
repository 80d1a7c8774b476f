// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package websocket pushes sync events to connected UI clients.

The package uses gorilla/websocket with the usual hub and client layout:

	┌──────────┐
	│   Hub    │ ← Broadcasts to all clients
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│          │         │         │
	│ Client1  │ Client2 │ Client3 │ Client4
	│          │         │         │
	└──────────┴─────────┴─────────┘

Each client runs a readPump, which answers the client's own frames, and a
writePump, the connection's only writer. Broadcasts arrive on the send
buffer the hub owns; replies use a separate buffer the hub never closes.

Server messages:

  - sync_complete: a flush finished (counts by outcome, remaining depth)
  - cache_updated: a coordinator rewrote a cached collection; re-read it
  - connectivity: the online flag changed
  - pong, subscribed, error: replies to client frames

Client messages:

  - ping: application-level keepalive
  - subscribe: {"collections": ["rewards"]} limits cache_updated to those
    collections; an empty list restores all of them

Any other type is answered with an error (code UNKNOWN_TYPE, or MALFORMED
for frames that are not JSON objects with a type). Five invalid frames in a
row close the connection with a policy violation.

Wire format:

	{"type": "cache_updated", "data": {"collection": "checkins", "items": 3, "timestamp": "..."}}

Hub.Attach connects the hub to the sync engine's signal and the
connectivity monitor. The HTTP upgrade itself lives in the api package.

Slow clients whose 256-message buffer fills are disconnected rather than
allowed to stall the broadcast loop.
*/
package websocket
