// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/supervisor"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Path:          t.TempDir(),
			DeadLetterTTL: time.Hour,
		},
		Remote: config.RemoteConfig{
			BaseURL: "http://127.0.0.1:1",
			Timeout: time.Second,
		},
		Sync: config.SyncConfig{
			BatchSize:   10,
			MaxAttempts: 3,
		},
		Connectivity: config.ConnectivityConfig{StartOnline: true},
		Session:      config.SessionConfig{UserID: "u1"},
		CheckIn:      config.CheckInConfig{TTL: time.Hour},
		Server: config.ServerConfig{
			Host:              "127.0.0.1",
			Port:              0,
			Timeout:           5 * time.Second,
			ShutdownTimeout:   time.Second,
			RateLimitDisabled: true,
		},
	}
}

func TestNewApp_RoutesHealth(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/v1/health/live = %d, want 200", rec.Code)
	}
}

func TestNewApp_MissingRemote(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.BaseURL = ""

	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Fatal("newApp() error = nil, want missing base URL")
	}

	// The store must have been released so it can be opened again.
	cfg.Remote.BaseURL = "http://127.0.0.1:1"
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	a.close()
}

func TestApp_SupervisedLifecycle(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()

	tree, err := supervisor.NewSupervisorTree(testLogger(), supervisor.TreeConfig{
		FailureBackoff:  50 * time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	a.populate(tree)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !(a.engine.IsRunning() && a.reconciler.IsRunning() && a.maintainer.IsRunning()) {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("components did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}

	if a.engine.IsRunning() || a.reconciler.IsRunning() || a.maintainer.IsRunning() {
		t.Error("components still running after shutdown")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
