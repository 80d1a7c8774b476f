// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package syncengine

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/remote"
)

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{RetryBackoff: time.Second, MaxBackoff: 10 * time.Second}
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{100, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.attempts); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestPolicy_Due(t *testing.T) {
	p := Policy{RetryBackoff: time.Second, MaxBackoff: time.Minute}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := now.Add(-time.Second)

	if !p.Due(queue.Job{}, now) {
		t.Error("fresh job should be due")
	}
	if p.Due(queue.Job{Attempts: 2, LastAttemptAt: &last}, now) {
		t.Error("job inside its 2s backoff should not be due")
	}
	if !p.Due(queue.Job{Attempts: 1, LastAttemptAt: &last}, now) {
		t.Error("job at the end of its 1s backoff should be due")
	}
}

func TestPolicy_Verdict(t *testing.T) {
	p := Policy{MaxAttempts: 3, DeadLetterPermanent: true}
	tests := []struct {
		name     string
		attempts int
		err      error
		want     string
	}{
		{"server error below max", 1, &remote.StatusError{StatusCode: 500}, ""},
		{"server error at max", 3, &remote.StatusError{StatusCode: 500}, queue.ReasonMaxAttempts},
		{"validation failure", 1, &remote.StatusError{StatusCode: 422}, queue.ReasonPermanent},
		{"rate limited", 1, &remote.StatusError{StatusCode: 429}, ""},
		{"network", 2, &remote.NetworkError{Err: errors.New("reset")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Verdict(tt.attempts, tt.err); got != tt.want {
				t.Errorf("Verdict() = %q, want %q", got, tt.want)
			}
		})
	}
}
