// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package syncengine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSignal_PublishDoesNotWaitForHandlers(t *testing.T) {
	sig := NewSignal()
	release := make(chan struct{})
	received := make(chan FlushResult, 2)
	if err := sig.Subscribe(context.Background(), "slow", func(_ context.Context, res FlushResult) {
		<-release
		received <- res
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	published := make(chan error, 1)
	go func() {
		for _, n := range []int{1, 2} {
			if err := sig.Publish(FlushResult{Trigger: TriggerManual, Attempted: n}); err != nil {
				published <- err
				return
			}
		}
		published <- nil
	}()

	select {
	case err := <-published:
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a running handler")
	}

	close(release)
	seen := map[int]bool{}
	for i := 0; i < 2; i++ {
		select {
		case res := <-received:
			seen[res.Attempted] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of 2 results", i)
		}
	}
	if !seen[1] || !seen[2] {
		t.Errorf("results seen = %v, want both", seen)
	}

	if err := sig.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sig.Publish(FlushResult{}); !errors.Is(err, ErrSignalClosed) {
		t.Errorf("Publish() after Close = %v, want ErrSignalClosed", err)
	}
}
