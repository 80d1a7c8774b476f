// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/driftline/internal/cache"
	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/connectivity"
	"github.com/tomtom215/driftline/internal/coordinator"
	"github.com/tomtom215/driftline/internal/middleware"
	"github.com/tomtom215/driftline/internal/models"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/remote"
	"github.com/tomtom215/driftline/internal/store"
	"github.com/tomtom215/driftline/internal/syncengine"
)

const testUser = "u1"

// fakeRemote is an in-memory stand-in for the remote API. While down it
// drops connections without answering.
type fakeRemote struct {
	mu       sync.Mutex
	down     bool
	checkIns []models.CheckIn
	points   map[string]int64
	nextID   int
	replays  []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{points: make(map[string]int64)}
}

func (f *fakeRemote) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if key := r.Header.Get(remote.HeaderIdempotencyKey); key != "" {
		f.replays = append(f.replays, key)
	}

	user := r.URL.Query().Get("user_id")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == coordinator.PathCheckIns:
		list := []models.CheckIn{}
		for _, ci := range f.checkIns {
			if ci.UserID == user {
				list = append(list, ci)
			}
		}
		writeRemote(w, http.StatusOK, list)
	case r.Method == http.MethodPost && r.URL.Path == coordinator.PathCheckIns:
		var req models.CheckInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.VenueID == "closed" {
			writeRemote(w, http.StatusUnprocessableEntity, map[string]string{"error": "venue closed"})
			return
		}
		f.nextID++
		now := time.Now().UTC()
		ci := models.CheckIn{
			ID:        fmt.Sprintf("srv-%d", f.nextID),
			UserID:    req.UserID,
			VenueID:   req.VenueID,
			Message:   req.Message,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		}
		f.checkIns = append(f.checkIns, ci)
		writeRemote(w, http.StatusCreated, ci)
	case r.Method == http.MethodPost && r.URL.Path == coordinator.PathRewardActions:
		var action models.RewardAction
		if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.points[action.UserID] += action.Points
		writeRemote(w, http.StatusCreated, map[string]interface{}{
			"user_id": action.UserID,
			"points":  f.points[action.UserID],
		})
	case r.Method == http.MethodGet && r.URL.Path == coordinator.PathRewardBalance:
		writeRemote(w, http.StatusOK, map[string]interface{}{
			"user_id": user,
			"points":  f.points[user],
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeRemote(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	remote  *fakeRemote
	queue   *queue.Queue
	monitor *connectivity.Monitor
	engine  *syncengine.Engine
	handler *Handler
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fr := newFakeRemote()
	srv := httptest.NewServer(fr)
	t.Cleanup(srv.Close)

	scfg := store.Config{
		Path:          filepath.Join(t.TempDir(), "store"),
		GCInterval:    time.Minute,
		DeadLetterTTL: 24 * time.Hour,
	}
	s, err := store.OpenForTesting(&scfg)
	if err != nil {
		t.Fatalf("OpenForTesting() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	q, err := queue.New(context.Background(), s)
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}

	client, err := remote.New(config.RemoteConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("remote.New() error = %v", err)
	}

	mon := connectivity.New(config.ConnectivityConfig{StartOnline: true})
	engine := syncengine.New(q, client,
		syncengine.PolicyFromConfig(config.SyncConfig{BatchSize: 50, MaxAttempts: 10}),
		syncengine.WithOnline(mon.Online),
	)
	checkIns := coordinator.NewCheckIns(s, client, q, mon, time.Hour)
	rewards := coordinator.NewRewards(s, client, q, mon)

	cfg := &config.Config{
		Session: config.SessionConfig{UserID: testUser},
		Server: config.ServerConfig{
			Timeout:           5 * time.Second,
			CORSOrigins:       []string{"http://localhost:3000"},
			RateLimitDisabled: true,
		},
	}

	h := NewHandler(Deps{
		Config:     cfg,
		Store:      s,
		Queue:      q,
		Engine:     engine,
		Monitor:    mon,
		CheckIns:   checkIns,
		Rewards:    rewards,
		Reconciler: coordinator.NewReconciler(nil, checkIns, rewards, testUser, 5*time.Second),
		Caches:     cache.NewRegistry(checkIns.Collection(), rewards.Collection()),
		Latency:    middleware.NewLatencyTracker(100, time.Second),
		Breaker:    client,
	})

	return &testEnv{
		remote:  fr,
		queue:   q,
		monitor: mon,
		engine:  engine,
		handler: h,
		router:  NewRouter(h, ChiMiddlewareConfigFromServer(cfg.Server)).SetupChi(),
	}
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Error    *models.APIError `json:"error"`
	Metadata models.Metadata  `json:"metadata"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s response: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, string(env.Data))
	}
}

func (e *testEnv) goOffline(t *testing.T) {
	t.Helper()
	e.remote.setDown(true)
	if w, _ := e.do(t, http.MethodPut, "/api/v1/connectivity", map[string]bool{"online": false}); w.Code != http.StatusOK {
		t.Fatalf("PUT /connectivity status = %d", w.Code)
	}
}

func (e *testEnv) goOnline(t *testing.T) {
	t.Helper()
	e.remote.setDown(false)
	if w, _ := e.do(t, http.MethodPut, "/api/v1/connectivity", map[string]bool{"online": true}); w.Code != http.StatusOK {
		t.Fatalf("PUT /connectivity status = %d", w.Code)
	}
}
