// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestGenerateCorrelationID(t *testing.T) {
	t.Parallel()

	a, b := GenerateCorrelationID(), GenerateCorrelationID()
	if len(a) != 8 {
		t.Errorf("expected 8 characters, got %d (%q)", len(a), a)
	}
	if a == b {
		t.Error("expected distinct correlation IDs")
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := CorrelationIDFromContext(ctx); got != "" {
		t.Errorf("expected empty ID on bare context, got %q", got)
	}
	ctx = ContextWithCorrelationID(ctx, "flush-01")
	if got := CorrelationIDFromContext(ctx); got != "flush-01" {
		t.Errorf("got %q, want flush-01", got)
	}
	if got := CorrelationIDFromContext(ContextWithNewCorrelationID(context.Background())); got == "" {
		t.Error("expected generated ID")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := ContextWithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("got %q, want req-1", got)
	}
}

func TestCtx_AddsIDs(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	ctx := ContextWithCorrelationID(context.Background(), "c0ffee00")
	ctx = ContextWithRequestID(ctx, "req-42")
	Ctx(ctx).Info().Msg("replayed")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"c0ffee00"`) {
		t.Errorf("missing correlation_id: %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-42"`) {
		t.Errorf("missing request_id: %s", out)
	}
}
