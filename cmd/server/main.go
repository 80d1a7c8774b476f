// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/driftline/internal/api"
	"github.com/tomtom215/driftline/internal/cache"
	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/connectivity"
	"github.com/tomtom215/driftline/internal/coordinator"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/middleware"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/remote"
	"github.com/tomtom215/driftline/internal/store"
	"github.com/tomtom215/driftline/internal/supervisor"
	"github.com/tomtom215/driftline/internal/supervisor/services"
	"github.com/tomtom215/driftline/internal/syncengine"
	ws "github.com/tomtom215/driftline/internal/websocket"
)

// app holds every long-lived component of the daemon.
type app struct {
	cfg        *config.Config
	store      *store.Store
	queue      *queue.Queue
	client     *remote.Client
	monitor    *connectivity.Monitor
	signal     *syncengine.Signal
	engine     *syncengine.Engine
	hub        *ws.Hub
	checkIns   *coordinator.CheckIns
	rewards    *coordinator.Rewards
	reconciler *coordinator.Reconciler
	maintainer *store.Maintainer
	server     *http.Server

	unsubscribe func()
}

// newApp opens the store and wires the components on top of it. The caller
// owns the returned app and must call close.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	storeCfg := store.FromConfig(cfg.Store)
	s, err := store.Open(&storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, store: s, unsubscribe: func() {}}

	a.queue, err = queue.New(ctx, s, queue.WithDeadLetterTTL(cfg.Store.DeadLetterTTL))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open queue: %w", err)
	}

	a.client, err = remote.New(cfg.Remote)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create remote client: %w", err)
	}

	a.monitor = connectivity.New(cfg.Connectivity)
	a.signal = syncengine.NewSignal()
	a.engine = syncengine.New(a.queue, a.client, syncengine.PolicyFromConfig(cfg.Sync),
		syncengine.WithSignal(a.signal),
		syncengine.WithOnline(a.monitor.Online),
		syncengine.WithRetryInterval(cfg.Sync.RetryInterval),
		syncengine.WithFlushOnStart(cfg.Sync.FlushOnStart),
	)
	a.unsubscribe = a.monitor.Subscribe(a.engine.OnConnectivity)

	a.hub = ws.NewHub()
	a.checkIns = coordinator.NewCheckIns(s, a.client, a.queue, a.monitor, cfg.CheckIn.TTL,
		coordinator.WithNotifier(a.hub))
	a.rewards = coordinator.NewRewards(s, a.client, a.queue, a.monitor,
		coordinator.WithNotifier(a.hub))
	a.reconciler = coordinator.NewReconciler(a.signal, a.checkIns, a.rewards,
		cfg.Session.UserID, cfg.Server.Timeout)

	a.maintainer = store.NewMaintainer(s, a.queue.MaintenanceTasks()...)

	handler := api.NewHandler(api.Deps{
		Config:     cfg,
		Store:      s,
		Queue:      a.queue,
		Engine:     a.engine,
		Monitor:    a.monitor,
		CheckIns:   a.checkIns,
		Rewards:    a.rewards,
		Reconciler: a.reconciler,
		Caches:     cache.NewRegistry(a.checkIns.Collection(), a.rewards.Collection()),
		Hub:        a.hub,
		Latency:    middleware.NewLatencyTracker(1000, time.Second),
		Breaker:    a.client,
	})
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFromServer(cfg.Server))

	a.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// populate registers the app's services on the tree, layer by layer.
func (a *app) populate(tree *supervisor.SupervisorTree) {
	tree.AddDataService(services.NewLifecycleService("store-maintenance", a.maintainer))

	tree.AddSyncService(services.NewLifecycleService("connectivity", a.monitor))
	tree.AddSyncService(services.NewLifecycleService("sync-engine", a.engine))
	tree.AddSyncService(services.NewLifecycleService("reconciler", a.reconciler))
	tree.AddSyncService(services.NewWebSocketHubService(a.hub))
	tree.AddSyncService(services.NewSubscriptionService("hub-bridge", func(ctx context.Context) (func(), error) {
		return a.hub.Attach(ctx, a.signal, a.monitor)
	}))

	tree.AddAPIService(services.NewHTTPServerService(a.server, a.cfg.Server.ShutdownTimeout))
}

// close releases the signal and the store. The supervisor tree must have
// stopped first.
func (a *app) close() {
	a.unsubscribe()
	if a.signal != nil {
		if err := a.signal.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing sync signal")
		}
	}
	if err := a.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing store")
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", api.Version).
		Str("remote", cfg.Remote.BaseURL).
		Str("user_id", cfg.Session.UserID).
		Msg("Starting Driftline with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer a.close()

	stats, err := a.queue.Stats(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read queue stats")
	} else {
		logging.Info().
			Int("depth", stats.Depth).
			Int("dead", stats.Dead).
			Msg("Queue restored from store")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFromConfig(cfg.Supervisor))
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}
	a.populate(tree)
	logging.Info().Str("addr", a.server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
		cancel()
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Driftline stopped gracefully")
}
