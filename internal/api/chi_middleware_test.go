// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChiMiddlewareConfigFromServer(t *testing.T) {
	cfg := ChiMiddlewareConfigFromServer(config.ServerConfig{
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitReqs:   10,
		RateLimitWindow: time.Second,
	})
	if cfg.RateLimitRequests != 10 || cfg.RateLimitWindow != time.Second {
		t.Errorf("rate limit = %d per %v", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if len(cfg.CORSAllowedOrigins) != 1 {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}

	defaults := ChiMiddlewareConfigFromServer(config.ServerConfig{})
	if defaults.RateLimitRequests != 100 || defaults.RateLimitWindow != time.Minute {
		t.Errorf("zero values did not keep defaults: %d per %v", defaults.RateLimitRequests, defaults.RateLimitWindow)
	}
}

func TestRateLimit(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	h := m.RateLimit()(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute, RateLimitDisabled: true})
	for _, mw := range []func(http.Handler) http.Handler{m.RateLimit(), m.RateLimitWrite()} {
		h := mw(okHandler())
		for i := 0; i < 5; i++ {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
			if w.Code != http.StatusOK {
				t.Fatalf("request %d status = %d with limiting disabled", i, w.Code)
			}
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		CORSAllowedMethods: []string{"GET", "POST"},
	})
	h := m.CORS()(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/queue", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRequestIDWithLogging(t *testing.T) {
	var seen string
	h := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen != "req-42" {
		t.Errorf("request ID in context = %q, want req-42", seen)
	}
	if got := w.Header().Get("X-Request-Id"); got != "req-42" {
		t.Errorf("response X-Request-Id = %q, want req-42", got)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line\\x0abreak"},
		{"tab\there", "tab\\x09here"},
		{"del\x7f", "del\\x7f"},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetIntParam(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 100, false},
		{"limit=5", 5, false},
		{"limit=-3", 0, false},
		{"limit=5000", 1000, false},
		{"limit=abc", 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		got, err := getIntParam(req, "limit", 100, 0, 1000)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.query, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("%q: got %d, want %d", tt.query, got, tt.want)
		}
	}
}
