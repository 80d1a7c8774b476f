// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newPeer starts a websocket server whose connection is handled by fn.
func newPeer(t *testing.T, fn func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewClient(t *testing.T) {
	hub := NewHub()
	srv := newPeer(t, func(*websocket.Conn) { time.Sleep(50 * time.Millisecond) })
	conn := dial(t, srv)

	a := NewClient(hub, conn)
	b := NewClient(hub, conn)
	if a.hub != hub || a.conn != conn {
		t.Error("client not wired to hub and connection")
	}
	if cap(a.send) != 256 {
		t.Errorf("send capacity = %d, want 256", cap(a.send))
	}
	if b.ID() <= a.ID() {
		t.Errorf("client IDs not increasing: %d then %d", a.ID(), b.ID())
	}
}

func TestClient_WritePumpDelivers(t *testing.T) {
	got := make(chan Message, 1)
	srv := newPeer(t, func(conn *websocket.Conn) {
		var msg Message
		if err := conn.ReadJSON(&msg); err == nil {
			got <- msg
		}
	})

	client := NewClient(NewHub(), dial(t, srv))
	go client.writePump()
	client.send <- Message{Type: MessageTypeCacheUpdated, Data: CacheUpdatedData{Collection: "checkins"}}

	select {
	case msg := <-got:
		if msg.Type != MessageTypeCacheUpdated {
			t.Errorf("Type = %q, want %q", msg.Type, MessageTypeCacheUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestClient_AnswersPing(t *testing.T) {
	hub := setupHub(t)

	gotPong := make(chan bool, 1)
	srv := newPeer(t, func(conn *websocket.Conn) {
		if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
			return
		}
		var msg Message
		if err := conn.ReadJSON(&msg); err == nil && msg.Type == MessageTypePong {
			gotPong <- true
		}
		time.Sleep(50 * time.Millisecond)
	})

	client := NewClient(hub, dial(t, srv))
	client.Start()

	select {
	case <-gotPong:
	case <-time.After(time.Second):
		t.Fatal("pong not received")
	}
}

func TestClient_UnregistersOnClose(t *testing.T) {
	hub := NewHub()
	srv := newPeer(t, func(conn *websocket.Conn) {})

	client := NewClient(hub, dial(t, srv))
	go client.readPump()

	select {
	case c := <-hub.Unregister:
		if c != client {
			t.Error("unexpected client unregistered")
		}
	case <-time.After(time.Second):
		t.Fatal("client not unregistered after the peer closed")
	}
}

func TestClient_BroadcastEndToEnd(t *testing.T) {
	hub := setupHub(t)

	got := make(chan Message, 4)
	srv := newPeer(t, func(conn *websocket.Conn) {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			got <- msg
		}
	})

	client := NewClient(hub, dial(t, srv))
	client.Start()
	registerClient(t, hub, client)

	hub.BroadcastCacheUpdated("rewards", 2)

	select {
	case msg := <-got:
		if msg.Type != MessageTypeCacheUpdated {
			t.Errorf("Type = %q, want %q", msg.Type, MessageTypeCacheUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast not received")
	}
}

func TestClient_RejectsUnknownType(t *testing.T) {
	hub := setupHub(t)

	got := make(chan Message, 1)
	srv := newPeer(t, func(conn *websocket.Conn) {
		if err := conn.WriteJSON(map[string]string{"type": "flush"}); err != nil {
			return
		}
		var msg Message
		if err := conn.ReadJSON(&msg); err == nil {
			got <- msg
		}
		time.Sleep(50 * time.Millisecond)
	})

	client := NewClient(hub, dial(t, srv))
	client.Start()

	select {
	case msg := <-got:
		if msg.Type != MessageTypeError {
			t.Fatalf("Type = %q, want %q", msg.Type, MessageTypeError)
		}
		data, ok := msg.Data.(map[string]interface{})
		if !ok || data["code"] != ErrorCodeUnknownType {
			t.Errorf("Data = %#v, want code %s", msg.Data, ErrorCodeUnknownType)
		}
	case <-time.After(time.Second):
		t.Fatal("error reply not received")
	}
}

func TestClient_HandleFrames(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		valid    bool
		wantType string
	}{
		{"ping", `{"type":"ping"}`, true, MessageTypePong},
		{"subscribe", `{"type":"subscribe","data":{"collections":["rewards"]}}`, true, MessageTypeSubscribed},
		{"not json", `hello`, false, MessageTypeError},
		{"missing type", `{"data":{}}`, false, MessageTypeError},
		{"bad subscribe data", `{"type":"subscribe","data":"rewards"}`, false, MessageTypeError},
		{"unknown type", `{"type":"replay"}`, false, MessageTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := createTestClient(NewHub())
			client.reply = make(chan Message, 1)

			if valid := client.handle([]byte(tt.frame)); valid != tt.valid {
				t.Errorf("handle() = %v, want %v", valid, tt.valid)
			}
			select {
			case msg := <-client.reply:
				if msg.Type != tt.wantType {
					t.Errorf("reply type = %q, want %q", msg.Type, tt.wantType)
				}
			default:
				t.Fatal("no reply queued")
			}
		})
	}
}

func TestClient_SubscriptionFiltersCacheUpdates(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	if !client.handle([]byte(`{"type":"subscribe","data":{"collections":["rewards"]}}`)) {
		t.Fatal("subscribe rejected")
	}
	if got := client.Collections(); len(got) != 1 || got[0] != "rewards" {
		t.Fatalf("Collections() = %v, want [rewards]", got)
	}
	registerClient(t, hub, client)

	hub.BroadcastCacheUpdated("checkins", 1)
	hub.BroadcastCacheUpdated("rewards", 2)
	hub.BroadcastJSON(MessageTypeConnectivity, ConnectivityData{Online: true})

	msg := receive(t, client)
	data, ok := msg.Data.(CacheUpdatedData)
	if msg.Type != MessageTypeCacheUpdated || !ok || data.Collection != "rewards" {
		t.Errorf("first message = %+v, want the rewards update only", msg)
	}
	if msg := receive(t, client); msg.Type != MessageTypeConnectivity {
		t.Errorf("second message type = %q, want connectivity passed through", msg.Type)
	}

	// An empty subscription restores every collection.
	client.handle([]byte(`{"type":"subscribe","data":{"collections":[]}}`))
	if client.Collections() != nil {
		t.Errorf("Collections() = %v, want nil", client.Collections())
	}
	hub.BroadcastCacheUpdated("checkins", 1)
	if msg := receive(t, client); msg.Data.(CacheUpdatedData).Collection != "checkins" {
		t.Errorf("message = %+v, want checkins update", msg)
	}
}

func TestClient_ClosesAfterRepeatedInvalidFrames(t *testing.T) {
	hub := setupHub(t)

	closed := make(chan error, 1)
	srv := newPeer(t, func(conn *websocket.Conn) {
		for i := 0; i < maxInvalidMessages; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("garbage")); err != nil {
				closed <- err
				return
			}
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closed <- err
				return
			}
		}
	})

	client := NewClient(hub, dial(t, srv))
	client.Start()

	select {
	case err := <-closed:
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Errorf("peer saw %v, want a policy violation close", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("connection not closed after repeated invalid frames")
	}
}
