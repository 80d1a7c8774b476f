// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/driftline/internal/logging"
)

// TopicSyncComplete is the topic every completed, non-empty flush is published on.
const TopicSyncComplete = "sync.complete"

// ErrSignalClosed is returned after Close.
var ErrSignalClosed = errors.New("sync signal is closed")

// SignalHandler reacts to a completed flush.
type SignalHandler func(ctx context.Context, res FlushResult)

// Signal is the process-wide "sync complete" signal. It is an in-process
// watermill gochannel: each subscriber receives every result on its own
// goroutine, but results published close together may arrive out of order.
// Handlers must not depend on ordering; FlushResult.StartedAt orders them.
// Publish does not wait for handlers.
type Signal struct {
	pubsub *gochannel.GoChannel

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewSignal creates a signal bus.
func NewSignal() *Signal {
	return &Signal{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, logging.NewWatermillAdapter()),
	}
}

// Publish announces res to every subscriber.
func (s *Signal) Publish(res FlushResult) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSignalClosed
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal flush result: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("trigger", string(res.Trigger))
	return s.pubsub.Publish(TopicSyncComplete, msg)
}

// Subscribe runs handler for every result published after the call, until
// ctx is cancelled or the signal is closed.
func (s *Signal) Subscribe(ctx context.Context, name string, handler SignalHandler) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSignalClosed
	}
	messages, err := s.pubsub.Subscribe(ctx, TopicSyncComplete)
	if err != nil {
		s.mu.RUnlock()
		return fmt.Errorf("subscribe %s: %w", TopicSyncComplete, err)
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.wg.Done()
		for msg := range messages {
			var res FlushResult
			if err := json.Unmarshal(msg.Payload, &res); err != nil {
				logging.Warn().Err(err).Str("subscriber", name).Msg("Dropping undecodable sync signal")
				msg.Ack()
				continue
			}
			s.deliver(ctx, name, handler, res)
			msg.Ack()
		}
	}()

	logging.Debug().Str("subscriber", name).Msg("Subscribed to sync complete signal")
	return nil
}

func (s *Signal) deliver(ctx context.Context, name string, handler SignalHandler, res FlushResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("subscriber", name).Msg("Sync signal handler panicked")
		}
	}()
	handler(ctx, res)
}

// Close stops delivery and waits for running handlers to return.
func (s *Signal) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.pubsub.Close()
	s.wg.Wait()
	return err
}
