// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/connectivity"
	ws "github.com/tomtom215/driftline/internal/websocket"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*WebSocketHubService)(nil)
	_ suture.Service = (*LifecycleService)(nil)
	_ suture.Service = (*SubscriptionService)(nil)

	_ StartStopper = (*connectivity.Monitor)(nil)
	_ ContextHub   = (*ws.Hub)(nil)
)

// mockHTTPServer blocks in ListenAndServe until Shutdown.
type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stopCh      chan struct{}
	stopOnce    sync.Once
	shutdowns   atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{started: make(chan struct{}, 1), stopCh: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	m.stopOnce.Do(func() { close(m.stopCh) })
	return m.shutdownErr
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		svc := NewHTTPServerService(newMockHTTPServer(), d)
		if svc.shutdownTimeout != 10*time.Second {
			t.Errorf("timeout %v: shutdownTimeout = %v, want 10s", d, svc.shutdownTimeout)
		}
	}
	if got := NewHTTPServerService(newMockHTTPServer(), time.Second).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	server := newMockHTTPServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case <-server.started:
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("Shutdown calls = %d, want 1", server.shutdowns.Load())
	}
}

func TestHTTPServerService_StartupFailure(t *testing.T) {
	bindErr := errors.New("bind: address already in use")
	server := newMockHTTPServer()
	server.listenErr = bindErr

	err := NewHTTPServerService(server, time.Second).Serve(context.Background())
	if !errors.Is(err, bindErr) {
		t.Errorf("Serve() error = %v, want %v", err, bindErr)
	}
}

func TestHTTPServerService_ShutdownFailure(t *testing.T) {
	shutdownErr := errors.New("shutdown timeout")
	server := newMockHTTPServer()
	server.shutdownErr = shutdownErr
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	<-server.started
	cancel()

	if err := <-errCh; !errors.Is(err, shutdownErr) {
		t.Errorf("Serve() error = %v, want %v", err, shutdownErr)
	}
}

// fakeComponent records its lifecycle calls.
type fakeComponent struct {
	mu       sync.Mutex
	running  bool
	startErr error
	starts   int
	stops    int
}

func (f *fakeComponent) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeComponent) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeComponent) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func TestLifecycleService_StartsAndStops(t *testing.T) {
	comp := &fakeComponent{}
	svc := NewLifecycleService("sync-engine", comp)
	if svc.String() != "sync-engine" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !comp.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !comp.IsRunning() {
		t.Fatal("component not started")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v", err)
	}
	if comp.IsRunning() || comp.stops != 1 {
		t.Errorf("running = %v, stops = %d after shutdown", comp.IsRunning(), comp.stops)
	}
}

func TestLifecycleService_StartFailure(t *testing.T) {
	startErr := errors.New("already running")
	comp := &fakeComponent{startErr: startErr}

	err := NewLifecycleService("engine", comp).Serve(context.Background())
	if !errors.Is(err, startErr) {
		t.Errorf("Serve() error = %v, want %v", err, startErr)
	}
}

func TestLifecycleService_StopsLeftoverRun(t *testing.T) {
	comp := &fakeComponent{running: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = NewLifecycleService("engine", comp).Serve(ctx)
	if comp.starts != 1 || comp.stops != 2 {
		t.Errorf("starts = %d, stops = %d, want 1 and 2", comp.starts, comp.stops)
	}
}

func TestLifecycleService_ConnectivityMonitor(t *testing.T) {
	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer probe.Close()

	mon := connectivity.New(config.ConnectivityConfig{
		StartOnline:   true,
		ProbeEnabled:  true,
		ProbeURL:      probe.URL,
		ProbeInterval: time.Hour,
	})
	svc := NewLifecycleService("connectivity", mon)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !mon.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !mon.IsRunning() {
		t.Fatal("monitor not started")
	}
	cancel()
	<-errCh
	if mon.IsRunning() {
		t.Error("monitor still running after shutdown")
	}
}

func TestWebSocketHubService(t *testing.T) {
	hub := ws.NewHub()
	svc := NewWebSocketHubService(hub)
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestSubscriptionService(t *testing.T) {
	var attached, detached atomic.Int32
	svc := NewSubscriptionService("hub-bridge", func(context.Context) (func(), error) {
		attached.Add(1)
		return func() { detached.Add(1) }, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for attached.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh

	if attached.Load() != 1 || detached.Load() != 1 {
		t.Errorf("attached = %d, detached = %d, want 1 and 1", attached.Load(), detached.Load())
	}
}

func TestSubscriptionService_AttachFailure(t *testing.T) {
	attachErr := errors.New("signal closed")
	svc := NewSubscriptionService("hub-bridge", func(context.Context) (func(), error) {
		return nil, attachErr
	})
	if err := svc.Serve(context.Background()); !errors.Is(err, attachErr) {
		t.Errorf("Serve() error = %v, want %v", err, attachErr)
	}
}
