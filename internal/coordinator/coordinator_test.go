// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/driftline/internal/models"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/remote"
	"github.com/tomtom215/driftline/internal/store"
	"github.com/tomtom215/driftline/internal/syncengine"
)

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// fakeServer stands in for the remote API. It implements API for live
// writes and syncengine.Replayer for queued ones.
type fakeServer struct {
	mu       sync.Mutex
	down     bool
	status   int
	checkIns []models.CheckIn
	points   map[string]int64
	nextID   int
	onSend   func()
}

func newFakeServer() *fakeServer {
	return &fakeServer{points: make(map[string]int64)}
}

func (f *fakeServer) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeServer) setStatus(status int) {
	f.mu.Lock()
	f.status = status
	f.mu.Unlock()
}

func (f *fakeServer) unreachable(method, path string) error {
	return &remote.NetworkError{Method: method, Path: path, Err: errors.New("connection refused")}
}

func (f *fakeServer) GetJSON(_ context.Context, path string, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return f.unreachable(http.MethodGet, path)
	}

	u, err := url.Parse(path)
	if err != nil {
		return err
	}
	user := u.Query().Get("user_id")

	var resp interface{}
	switch u.Path {
	case PathCheckIns:
		list := []models.CheckIn{}
		for _, ci := range f.checkIns {
			if ci.UserID == user {
				list = append(list, ci)
			}
		}
		resp = list
	case PathRewardBalance:
		resp = balanceResponse{UserID: user, Points: f.points[user]}
	default:
		return &remote.StatusError{Method: http.MethodGet, Path: path, StatusCode: http.StatusNotFound}
	}
	return roundTrip(resp, out)
}

func (f *fakeServer) SendJSON(_ context.Context, method, path string, in, out interface{}) error {
	if f.onSend != nil {
		f.onSend()
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return f.unreachable(method, path)
	}
	if f.status != 0 {
		return &remote.StatusError{Method: method, Path: path, StatusCode: f.status}
	}
	resp, err := f.apply(path, body)
	if err != nil {
		return err
	}
	return roundTrip(resp, out)
}

func (f *fakeServer) Replay(_ context.Context, job queue.Job) (*remote.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, f.unreachable(job.Method, job.Endpoint)
	}
	if f.status != 0 {
		return nil, &remote.StatusError{Method: job.Method, Path: job.Endpoint, StatusCode: f.status}
	}
	resp, err := f.apply(job.Endpoint, job.Body)
	if err != nil {
		return nil, err
	}
	data, _ := json.Marshal(resp)
	return &remote.Response{StatusCode: http.StatusCreated, Body: data}, nil
}

// apply must be called with f.mu held.
func (f *fakeServer) apply(path string, body []byte) (interface{}, error) {
	switch path {
	case PathCheckIns:
		var req models.CheckInRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		f.nextID++
		ci := models.CheckIn{
			ID:        fmt.Sprintf("srv-%d", f.nextID),
			UserID:    req.UserID,
			VenueID:   req.VenueID,
			Message:   req.Message,
			CreatedAt: testNow,
			ExpiresAt: testNow.Add(time.Hour),
		}
		f.checkIns = append(f.checkIns, ci)
		return ci, nil
	case PathRewardActions:
		var action models.RewardAction
		if err := json.Unmarshal(body, &action); err != nil {
			return nil, err
		}
		f.points[action.UserID] += action.Points
		return balanceResponse{UserID: action.UserID, Points: f.points[action.UserID]}, nil
	}
	return nil, &remote.StatusError{Method: http.MethodPost, Path: path, StatusCode: http.StatusNotFound}
}

func roundTrip(in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

type fakeConn struct {
	online atomic.Bool
}

func newFakeConn(online bool) *fakeConn {
	c := &fakeConn{}
	c.online.Store(online)
	return c
}

func (c *fakeConn) Online() bool { return c.online.Load() }

// goOffline takes both the server and the connectivity flag down.
func goOffline(srv *fakeServer, conn *fakeConn) {
	srv.setDown(true)
	conn.online.Store(false)
}

func goOnline(srv *fakeServer, conn *fakeConn) {
	srv.setDown(false)
	conn.online.Store(true)
}

type harness struct {
	store    *store.Store
	queue    *queue.Queue
	srv      *fakeServer
	conn     *fakeConn
	checkIns *CheckIns
	rewards  *Rewards
	engine   *syncengine.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := store.Config{
		Path:          filepath.Join(t.TempDir(), "store"),
		GCInterval:    time.Minute,
		DeadLetterTTL: 24 * time.Hour,
	}
	s, err := store.OpenForTesting(&cfg)
	if err != nil {
		t.Fatalf("OpenForTesting() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	q, err := queue.New(context.Background(), s)
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}

	srv := newFakeServer()
	conn := newFakeConn(true)
	clock := WithClock(func() time.Time { return testNow })
	return &harness{
		store:    s,
		queue:    q,
		srv:      srv,
		conn:     conn,
		checkIns: NewCheckIns(s, srv, q, conn, 2*time.Hour, clock),
		rewards:  NewRewards(s, srv, q, conn, clock),
		engine:   syncengine.New(q, srv, syncengine.Policy{MaxAttempts: 10, DeadLetterPermanent: true}),
	}
}

func (h *harness) queued(t *testing.T) []queue.Job {
	t.Helper()
	jobs, err := h.queue.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return jobs
}

func (h *harness) flush(t *testing.T) syncengine.FlushResult {
	t.Helper()
	res, err := h.engine.Flush(context.Background(), syncengine.TriggerOnline)
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	return res
}

func checkInRequest() models.CheckInRequest {
	return models.CheckInRequest{UserID: "u1", VenueID: "venue-9", Message: "hello"}
}

func TestCheckIns_CreateOnline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ci, err := h.checkIns.Create(ctx, checkInRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ci.ID != "srv-1" || ci.SyncState != models.SyncStateSynced {
		t.Errorf("Create() = %+v, want srv-1 synced", ci)
	}

	cached, _ := h.checkIns.List(ctx)
	if len(cached) != 1 || cached[0].ID != "srv-1" || !cached[0].ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("cache = %+v", cached)
	}
	if jobs := h.queued(t); len(jobs) != 0 {
		t.Errorf("queue length = %d, want 0", len(jobs))
	}
}

func TestCheckIns_CreateOfflineFallsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	goOffline(h.srv, h.conn)

	ci, err := h.checkIns.Create(ctx, checkInRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !models.IsOfflineID(ci.ID) {
		t.Errorf("ID = %q, want an offline- ID", ci.ID)
	}
	if ci.SyncState != models.SyncStatePending {
		t.Errorf("SyncState = %q, want pending", ci.SyncState)
	}
	if !ci.ExpiresAt.Equal(testNow.Add(2 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want created + ttl", ci.ExpiresAt)
	}

	cached, _ := h.checkIns.List(ctx)
	if len(cached) != 1 || cached[0].ID != ci.ID || !cached[0].Pending() {
		t.Errorf("cache = %+v", cached)
	}

	jobs := h.queued(t)
	if len(jobs) != 1 {
		t.Fatalf("queue length = %d, want 1", len(jobs))
	}
	job := jobs[0]
	if job.Endpoint != PathCheckIns || job.Method != http.MethodPost || job.Kind != KindCheckIn {
		t.Errorf("job = %+v", job)
	}
	if job.Headers[HeaderLocalID] != ci.ID {
		t.Errorf("local ID header = %q, want %q", job.Headers[HeaderLocalID], ci.ID)
	}
	var body models.CheckInRequest
	if err := json.Unmarshal(job.Body, &body); err != nil {
		t.Fatalf("decode job body: %v", err)
	}
	if body.UserID != "u1" || body.VenueID != "venue-9" {
		t.Errorf("job body = %+v, want user and venue carried in the body", body)
	}
}

func TestCheckIns_OfflineIDsUniqueWithinTick(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	goOffline(h.srv, h.conn)

	first, err := h.checkIns.Create(ctx, checkInRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := h.checkIns.Create(ctx, models.CheckInRequest{UserID: "u1", VenueID: "venue-10"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("both offline check-ins got ID %q", first.ID)
	}

	cached, _ := h.checkIns.List(ctx)
	if len(cached) != 2 {
		t.Errorf("cache length = %d, want 2", len(cached))
	}
	jobs := h.queued(t)
	if len(jobs) != 2 {
		t.Fatalf("queue length = %d, want 2", len(jobs))
	}
	if jobs[0].Headers[HeaderLocalID] != first.ID || jobs[1].Headers[HeaderLocalID] != second.ID {
		t.Errorf("local ID headers = %q, %q, want %q, %q",
			jobs[0].Headers[HeaderLocalID], jobs[1].Headers[HeaderLocalID], first.ID, second.ID)
	}
}

func TestCheckIns_OfflineIDsUniqueAcrossRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	goOffline(h.srv, h.conn)

	before, err := h.checkIns.Create(ctx, checkInRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	restarted := NewCheckIns(h.store, h.srv, h.queue, h.conn, 2*time.Hour,
		WithClock(func() time.Time { return testNow }))
	after, err := restarted.Create(ctx, checkInRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if after.ID == before.ID {
		t.Fatalf("restarted coordinator reused offline ID %q", after.ID)
	}
	cached, _ := restarted.List(ctx)
	if len(cached) != 2 {
		t.Errorf("cache length = %d, want 2", len(cached))
	}
}

func TestCheckIns_GenuineFailuresPropagate(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *harness)
	}{
		{
			name:  "server error while online",
			setup: func(h *harness) { h.srv.setStatus(http.StatusInternalServerError) },
		},
		{
			name: "server error while flagged offline",
			setup: func(h *harness) {
				h.srv.setStatus(http.StatusServiceUnavailable)
				h.conn.online.Store(false)
			},
		},
		{
			name:  "network error while flagged online",
			setup: func(h *harness) { h.srv.setDown(true) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			if _, err := h.checkIns.Create(context.Background(), checkInRequest()); err == nil {
				t.Fatal("Create() error = nil, want the failure surfaced")
			}
			cached, _ := h.checkIns.List(context.Background())
			if len(cached) != 0 {
				t.Errorf("cache = %+v, want empty", cached)
			}
			if jobs := h.queued(t); len(jobs) != 0 {
				t.Errorf("queue length = %d, want 0", len(jobs))
			}
		})
	}
}

func TestCheckIns_CreateValidates(t *testing.T) {
	h := newHarness(t)
	if _, err := h.checkIns.Create(context.Background(), models.CheckInRequest{UserID: "u1"}); err == nil {
		t.Error("expected validation error for missing venue")
	}
}

func TestCheckIns_OptimisticEntitySuperseded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	goOffline(h.srv, h.conn)
	pending, err := h.checkIns.Create(ctx, checkInRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	goOnline(h.srv, h.conn)
	if res := h.flush(t); res.Succeeded != 1 {
		t.Fatalf("flush = %+v, want 1 succeeded", res)
	}
	if _, err := h.checkIns.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	cached, _ := h.checkIns.List(ctx)
	var forUser []models.CheckIn
	for _, ci := range cached {
		if ci.UserID == "u1" {
			forUser = append(forUser, ci)
		}
	}
	if len(forUser) != 1 {
		t.Fatalf("cache holds %d check-ins for u1, want exactly 1: %+v", len(forUser), forUser)
	}
	if forUser[0].ID == pending.ID || models.IsOfflineID(forUser[0].ID) {
		t.Errorf("cached ID = %q, want the server-issued ID", forUser[0].ID)
	}
	if forUser[0].SyncState != models.SyncStateSynced {
		t.Errorf("SyncState = %q, want synced", forUser[0].SyncState)
	}
}

func TestCheckIns_RefreshKeepsStillQueued(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	goOffline(h.srv, h.conn)
	pending, err := h.checkIns.Create(ctx, checkInRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The server is reachable again but the job has not been replayed yet.
	goOnline(h.srv, h.conn)
	snapshot, err := h.checkIns.Refresh(ctx, "u1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].ID != pending.ID {
		t.Errorf("snapshot = %+v, want the pending check-in kept", snapshot)
	}
}

func TestCheckIns_RefreshFailureKeepsCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	goOffline(h.srv, h.conn)
	if _, err := h.checkIns.Create(ctx, checkInRequest()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := h.checkIns.Refresh(ctx, "u1"); err == nil {
		t.Fatal("Refresh() error = nil while the server is down")
	}
	cached, _ := h.checkIns.List(ctx)
	if len(cached) != 1 {
		t.Errorf("cache length = %d, want 1", len(cached))
	}
}

func TestRewards_ReconciliationReplacesAdjustment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.srv.points["u1"] = 100

	bal, err := h.rewards.Refresh(ctx, "u1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if bal.Points != 100 {
		t.Fatalf("initial balance = %d, want 100", bal.Points)
	}

	goOffline(h.srv, h.conn)
	res, err := h.rewards.Submit(ctx, models.RewardActionRequest{UserID: "u1", Action: "checkin_bonus", Points: 50})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Queued {
		t.Error("Queued = false while offline")
	}
	if res.Balance.Points != 150 || res.Balance.SyncState != models.SyncStatePending {
		t.Errorf("optimistic balance = %+v, want 150 pending", res.Balance)
	}
	if shown, _ := h.rewards.Balance(ctx, "u1"); shown.Points != 150 {
		t.Errorf("displayed balance = %d, want 150", shown.Points)
	}

	goOnline(h.srv, h.conn)
	h.flush(t)
	if h.srv.points["u1"] != 150 {
		t.Fatalf("server total = %d, want 150", h.srv.points["u1"])
	}

	bal, err = h.rewards.Refresh(ctx, "u1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if bal.Points != 150 {
		t.Errorf("reconciled balance = %d, want 150", bal.Points)
	}
	if bal.Confirmed != 150 || bal.SyncState != models.SyncStateSynced {
		t.Errorf("reconciled balance = %+v, want confirmed 150 synced", bal)
	}
}

func TestRewards_RefreshBeforeReplayCountsQueuedOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.srv.points["u1"] = 100
	if _, err := h.rewards.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	goOffline(h.srv, h.conn)
	if _, err := h.rewards.Submit(ctx, models.RewardActionRequest{UserID: "u1", Action: "bonus", Points: 50}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	goOnline(h.srv, h.conn)
	for i := 0; i < 3; i++ {
		bal, err := h.rewards.Refresh(ctx, "u1")
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if bal.Points != 150 || bal.Confirmed != 100 {
			t.Errorf("refresh %d = %+v, want 150 shown on 100 confirmed", i, bal)
		}
	}
}

// replayWithoutRefetch leaves u1 with 100 confirmed and a +50 action that
// was queued offline and has since replayed, with no refetch afterwards.
func replayWithoutRefetch(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()
	h.srv.points["u1"] = 100
	if _, err := h.rewards.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	goOffline(h.srv, h.conn)
	if _, err := h.rewards.Submit(ctx, models.RewardActionRequest{UserID: "u1", Action: "bonus", Points: 50}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	goOnline(h.srv, h.conn)
	if res := h.flush(t); res.Succeeded != 1 {
		t.Fatalf("flush = %+v, want 1 succeeded", res)
	}
	if h.srv.points["u1"] != 150 {
		t.Fatalf("server total = %d, want 150", h.srv.points["u1"])
	}
	if bal, _ := h.rewards.Balance(ctx, "u1"); bal.Points != 150 {
		t.Fatalf("balance after replay = %d, want 150", bal.Points)
	}
}

func TestRewards_OfflineSubmitKeepsReplayedAdjustment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	replayWithoutRefetch(t, h)

	goOffline(h.srv, h.conn)
	res, err := h.rewards.Submit(ctx, models.RewardActionRequest{UserID: "u1", Action: "bonus", Points: 10})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Queued || res.Balance.Points != 160 {
		t.Errorf("balance = %+v, want 160 queued", res.Balance)
	}
	if shown, _ := h.rewards.Balance(ctx, "u1"); shown.Points != 160 {
		t.Errorf("displayed balance = %d, want 160", shown.Points)
	}

	// A refetch before the second action replays counts it exactly once.
	goOnline(h.srv, h.conn)
	bal, err := h.rewards.Refresh(ctx, "u1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if bal.Points != 160 || bal.Confirmed != 150 {
		t.Errorf("refreshed balance = %+v, want 160 shown on 150 confirmed", bal)
	}
}

func TestRewards_RejectedSubmitKeepsReplayedAdjustment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	replayWithoutRefetch(t, h)

	h.srv.setStatus(http.StatusInternalServerError)
	if _, err := h.rewards.Submit(ctx, models.RewardActionRequest{UserID: "u1", Action: "bonus", Points: 10}); err == nil {
		t.Fatal("Submit() error = nil, want the server error")
	}
	bal, _ := h.rewards.Balance(ctx, "u1")
	if bal.Points != 150 {
		t.Errorf("balance = %d, want 150 after revert", bal.Points)
	}
	if bal.SyncState != models.SyncStatePending {
		t.Errorf("SyncState = %q, want pending until a refetch confirms 150", bal.SyncState)
	}

	h.srv.setStatus(0)
	bal, err := h.rewards.Refresh(ctx, "u1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if bal.Points != 150 || bal.Confirmed != 150 || bal.SyncState != models.SyncStateSynced {
		t.Errorf("refreshed balance = %+v, want 150 confirmed synced", bal)
	}
}

func TestRewards_SubmitOnline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.srv.points["u1"] = 100
	if _, err := h.rewards.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	var during atomic.Int64
	h.srv.onSend = func() {
		b, _ := h.rewards.Balance(ctx, "u1")
		during.Store(b.Points)
	}

	res, err := h.rewards.Submit(ctx, models.RewardActionRequest{UserID: "u1", Action: "bonus", Points: 25})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if during.Load() != 125 {
		t.Errorf("balance during request = %d, want 125 applied before confirmation", during.Load())
	}
	if res.Queued {
		t.Error("Queued = true for a live write")
	}
	if res.Balance.Points != 125 || res.Balance.Confirmed != 125 || res.Balance.SyncState != models.SyncStateSynced {
		t.Errorf("balance = %+v, want 125 synced", res.Balance)
	}
	if jobs := h.queued(t); len(jobs) != 0 {
		t.Errorf("queue length = %d, want 0", len(jobs))
	}
}

func TestRewards_ServerErrorRevertsAdjustment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.srv.points["u1"] = 100
	if _, err := h.rewards.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	h.srv.setStatus(http.StatusUnprocessableEntity)
	if _, err := h.rewards.Submit(ctx, models.RewardActionRequest{UserID: "u1", Action: "bonus", Points: 25}); err == nil {
		t.Fatal("Submit() error = nil, want the server error")
	}
	bal, _ := h.rewards.Balance(ctx, "u1")
	if bal.Points != 100 {
		t.Errorf("balance = %d, want 100 after revert", bal.Points)
	}
}

func TestRewards_Validation(t *testing.T) {
	h := newHarness(t)
	tests := []models.RewardActionRequest{
		{Action: "bonus", Points: 1},
		{UserID: "u1", Points: 1},
		{UserID: "u1", Action: "bonus", Points: 0},
	}
	for _, req := range tests {
		if _, err := h.rewards.Submit(context.Background(), req); err == nil {
			t.Errorf("Submit(%+v) error = nil, want validation error", req)
		}
	}
}

func TestRewards_BalanceUnknownUser(t *testing.T) {
	h := newHarness(t)
	bal, err := h.rewards.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if bal.UserID != "nobody" || bal.Points != 0 {
		t.Errorf("Balance() = %+v, want zero", bal)
	}
}

func TestReconciler_RefetchesAfterSync(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.srv.points["u1"] = 100
	if _, err := h.rewards.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	goOffline(h.srv, h.conn)
	if _, err := h.checkIns.Create(ctx, checkInRequest()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := h.rewards.Submit(ctx, models.RewardActionRequest{UserID: "u1", Action: "bonus", Points: 50}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	sig := syncengine.NewSignal()
	defer sig.Close()
	rec := NewReconciler(sig, h.checkIns, h.rewards, "u1", time.Second)
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer rec.Stop()

	engine := syncengine.New(h.queue, h.srv, syncengine.Policy{}, syncengine.WithSignal(sig))
	goOnline(h.srv, h.conn)
	if _, err := engine.Flush(ctx, syncengine.TriggerOnline); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cached, _ := h.checkIns.List(ctx)
		bal, _ := h.rewards.Balance(ctx, "u1")
		if len(cached) == 1 && strings.HasPrefix(cached[0].ID, "srv-") && bal.Confirmed == 150 {
			if bal.Points != 150 {
				t.Errorf("balance = %d, want 150", bal.Points)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("reconciler did not refetch canonical state after the flush")
}
