// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package websocket

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024

	// maxInvalidMessages consecutive bad frames close the connection.
	maxInvalidMessages = 5
)

// Inbound message types. Anything else is answered with an error message.
const (
	MessageTypeSubscribe  = "subscribe"
	MessageTypeSubscribed = "subscribed"
	MessageTypeError      = "error"
)

// Error codes carried by error messages.
const (
	ErrorCodeMalformed   = "MALFORMED"
	ErrorCodeUnknownType = "UNKNOWN_TYPE"
)

// SubscribeData selects the cache collections a client receives
// cache_updated messages for. An empty list means every collection.
type SubscribeData struct {
	Collections []string `json:"collections"`
}

// ErrorData is sent with error.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// inbound is a client frame. Data stays raw until the type is known.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

var clientIDCounter atomic.Uint64

// Client is one websocket connection registered with the hub.
//
// The hub owns send and closes it on unregister. Replies to the client's own
// frames go through reply, which only the client touches, so the read pump
// never writes to a channel the hub may have closed.
type Client struct {
	id    uint64
	hub   *Hub
	conn  *websocket.Conn
	send  chan Message
	reply chan Message

	mu          sync.RWMutex
	collections map[string]bool
}

// NewClient wraps conn. IDs increase monotonically and order broadcasts.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:    clientIDCounter.Add(1),
		hub:   hub,
		conn:  conn,
		send:  make(chan Message, 256),
		reply: make(chan Message, 16),
	}
}

// ID returns the client's identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Collections returns the subscribed collections, sorted. Nil means all.
func (c *Client) Collections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.collections) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.collections))
	for name := range c.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (c *Client) subscribe(names []string) {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		if name != "" {
			set[name] = true
		}
	}
	c.mu.Lock()
	c.collections = set
	c.mu.Unlock()
}

// wants reports whether message passes the client's collection filter.
// Only cache_updated messages are filtered.
func (c *Client) wants(message Message) bool {
	if message.Type != MessageTypeCacheUpdated {
		return true
	}
	data, ok := message.Data.(CacheUpdatedData)
	if !ok {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.collections) == 0 || c.collections[data.Collection]
}

// handle answers one inbound frame and reports whether it was valid.
func (c *Client) handle(raw []byte) bool {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
		metrics.WSErrors.WithLabelValues("malformed").Inc()
		c.respond(MessageTypeError, ErrorData{Code: ErrorCodeMalformed, Message: "expected a JSON object with a type"})
		return false
	}

	switch in.Type {
	case MessageTypePing:
		c.respond(MessageTypePong, nil)
	case MessageTypeSubscribe:
		var sub SubscribeData
		if len(in.Data) > 0 {
			if err := json.Unmarshal(in.Data, &sub); err != nil {
				metrics.WSErrors.WithLabelValues("malformed").Inc()
				c.respond(MessageTypeError, ErrorData{Code: ErrorCodeMalformed, Message: "subscribe data must list collections"})
				return false
			}
		}
		c.subscribe(sub.Collections)
		c.respond(MessageTypeSubscribed, SubscribeData{Collections: c.Collections()})
		logging.Debug().Uint64("client_id", c.id).Strs("collections", sub.Collections).Msg("websocket client subscribed")
	default:
		metrics.WSErrors.WithLabelValues("unknown_type").Inc()
		c.respond(MessageTypeError, ErrorData{Code: ErrorCodeUnknownType, Message: "unknown message type " + in.Type})
		return false
	}
	return true
}

// respond queues a reply. A client that does not read its replies loses them.
func (c *Client) respond(messageType string, data interface{}) {
	select {
	case c.reply <- Message{Type: messageType, Data: data}:
	default:
		metrics.WSErrors.WithLabelValues("reply_full").Inc()
	}
}

// readPump handles inbound frames until the connection fails, then
// unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Uint64("client_id", c.id).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	invalid := 0
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Warn().Err(err).Uint64("client_id", c.id).Msg("unexpected websocket close")
			}
			return
		}

		if c.handle(raw) {
			invalid = 0
			continue
		}
		invalid++
		if invalid >= maxInvalidMessages {
			logging.Warn().Uint64("client_id", c.id).Int("invalid", invalid).Msg("closing websocket after repeated invalid messages")
			closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many invalid messages")
			_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
			return
		}
	}
}

// write sends one message as a text frame.
func (c *Client) write(message Message) error {
	payload, err := MarshalMessage(message)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// writePump is the connection's only writer. It stops when the hub closes
// send or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		var (
			message Message
			err     error
		)
		select {
		case m, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			message = m
		case message = <-c.reply:
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		}

		if err = c.write(message); err != nil {
			metrics.WSErrors.WithLabelValues("write").Inc()
			logging.Warn().Err(err).Uint64("client_id", c.id).Str("type", message.Type).Msg("failed to write websocket message")
			return
		}
	}
}

// Start runs the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
