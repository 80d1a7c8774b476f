// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/logging"
)

// mockService runs until cancelled, failing its first fails runs.
type mockService struct {
	name   string
	fails  int32
	starts atomic.Int32
}

func (m *mockService) Serve(ctx context.Context) error {
	n := m.starts.Add(1)
	if n <= m.fails {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}

	got := tree.Config()
	if got != DefaultTreeConfig() {
		t.Errorf("Config() = %+v, want defaults %+v", got, DefaultTreeConfig())
	}
}

func TestTreeConfigFromConfig(t *testing.T) {
	tc := TreeConfigFromConfig(config.SupervisorConfig{
		FailureThreshold: 3,
		ShutdownTimeout:  2 * time.Second,
	})
	if tc.FailureThreshold != 3 || tc.ShutdownTimeout != 2*time.Second {
		t.Errorf("overrides not applied: %+v", tc)
	}
	if tc.FailureDecay != 30 || tc.FailureBackoff != 15*time.Second {
		t.Errorf("defaults not kept: %+v", tc)
	}
}

func TestSupervisorTree_StartsEveryLayer(t *testing.T) {
	tree, err := NewSupervisorTree(logging.NewSlogLogger(), TreeConfig{
		FailureBackoff:  50 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	data := &mockService{name: "data"}
	syncSvc := &mockService{name: "sync"}
	api := &mockService{name: "api"}
	tree.AddDataService(data)
	tree.AddSyncService(syncSvc)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool {
		return data.starts.Load() == 1 && syncSvc.starts.Load() == 1 && api.starts.Load() == 1
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestSupervisorTree_RestartsFailedService(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	flaky := &mockService{name: "flaky", fails: 2}
	tree.AddSyncService(flaky)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return flaky.starts.Load() >= 3 })

	cancel()
	<-errCh
}

func TestSupervisorTree_RemoveSyncService(t *testing.T) {
	tree, _ := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})

	svc := &mockService{name: "removable"}
	token := tree.AddSyncService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return svc.starts.Load() == 1 })
	if err := tree.RemoveSyncService(token); err != nil {
		t.Errorf("RemoveSyncService() error = %v", err)
	}

	cancel()
	<-errCh
}
