// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package websocket

import (
	"context"
	"fmt"

	"github.com/tomtom215/driftline/internal/connectivity"
	"github.com/tomtom215/driftline/internal/syncengine"
)

// Attach forwards sync complete signals and connectivity transitions to the
// hub's clients until ctx is cancelled or the returned detach func is called.
// Either source may be nil.
func (h *Hub) Attach(ctx context.Context, sig *syncengine.Signal, mon *connectivity.Monitor) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	if sig != nil {
		err := sig.Subscribe(ctx, "websocket-hub", func(_ context.Context, res syncengine.FlushResult) {
			h.BroadcastSyncComplete(res)
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("attach hub to sync signal: %w", err)
		}
	}

	unsubscribe := func() {}
	if mon != nil {
		unsubscribe = mon.Subscribe(h.BroadcastConnectivity)
	}

	return func() {
		unsubscribe()
		cancel()
	}, nil
}
