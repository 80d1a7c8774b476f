// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/driftline/internal/connectivity"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/metrics"
	"github.com/tomtom215/driftline/internal/syncengine"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeSyncComplete = "sync_complete"
	MessageTypeCacheUpdated = "cache_updated"
	MessageTypeConnectivity = "connectivity"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until ctx is cancelled, then closes every
// client and returns ctx.Err().
//
// Lifecycle events are drained before broadcasts so a message is never sent
// to a client whose registration is still pending.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	// Cancellation is expected here, so it is not logged as an error.
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients must be called with h.mu held.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients delivers message in client ID order to every client whose
// filter accepts it. Clients whose send buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if !client.wants(message) {
			continue
		}
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON queues a message for every connected client. The message is
// dropped if the broadcast buffer is full.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// SyncCompleteData is sent with sync_complete.
type SyncCompleteData struct {
	Timestamp    string `json:"timestamp"`
	Trigger      string `json:"trigger"`
	Attempted    int    `json:"attempted"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	DeadLettered int    `json:"dead_lettered"`
	Remaining    int    `json:"remaining"`
	DurationMs   int64  `json:"duration_ms"`
}

// BroadcastSyncComplete tells clients a flush finished.
func (h *Hub) BroadcastSyncComplete(res syncengine.FlushResult) {
	h.BroadcastJSON(MessageTypeSyncComplete, SyncCompleteData{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Trigger:      string(res.Trigger),
		Attempted:    res.Attempted,
		Succeeded:    res.Succeeded,
		Failed:       res.Failed,
		DeadLettered: res.DeadLettered,
		Remaining:    res.Remaining,
		DurationMs:   res.Duration.Milliseconds(),
	})
}

// CacheUpdatedData is sent with cache_updated.
type CacheUpdatedData struct {
	Timestamp  string `json:"timestamp"`
	Collection string `json:"collection"`
	Items      int    `json:"items"`
}

// BroadcastCacheUpdated tells clients to re-read a cached collection.
func (h *Hub) BroadcastCacheUpdated(collection string, items int) {
	h.BroadcastJSON(MessageTypeCacheUpdated, CacheUpdatedData{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Collection: collection,
		Items:      items,
	})
}

// ConnectivityData is sent with connectivity.
type ConnectivityData struct {
	Online bool   `json:"online"`
	Source string `json:"source"`
	Since  string `json:"since"`
}

// BroadcastConnectivity forwards an online/offline transition.
func (h *Hub) BroadcastConnectivity(ev connectivity.Event) {
	h.BroadcastJSON(MessageTypeConnectivity, ConnectivityData{
		Online: ev.Online,
		Source: ev.Source,
		Since:  ev.At.UTC().Format(time.RFC3339),
	})
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
