// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/metrics"
	"github.com/tomtom215/driftline/internal/queue"
)

// maxErrorBodySize limits how much of an error response is kept.
const maxErrorBodySize = 4 * 1024

// Headers added to replayed jobs.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayAttempt  = "X-Driftline-Attempt"
)

// Request is one call to the remote API. Path is relative to the base URL.
type Request struct {
	Method  string
	Path    string
	Body    []byte
	Headers map[string]string
}

// Response is a 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client talks to the remote API. Every request passes the rate limiter and
// the circuit breaker when they are enabled.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*Response]
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for cfg.BaseURL.
func New(cfg config.RemoteConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote base URL is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		headers: cfg.Headers,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.BreakerEnabled {
		c.breaker = newBreaker(cfg)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerState returns the circuit breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return stateToString(c.breaker.State())
}

// Do sends req. A non-2xx response is a *StatusError; no response at all is
// a *NetworkError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
		}
	}
	if c.breaker == nil {
		return c.do(ctx, req)
	}

	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.do(ctx, req)
	})
	recordBreakerResult(c.breaker, err)
	if isBreakerRejection(err) {
		logging.Warn().Err(err).Str("path", req.Path).Msg("[CIRCUIT BREAKER] Request rejected")
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: fmt.Errorf("%w: %w", ErrCircuitOpen, err)}
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.RecordRemoteRequest(req.Method, 0, time.Since(start), err)
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}
	defer resp.Body.Close()

	metrics.RecordRemoteRequest(req.Method, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       readBodyForError(resp.Body),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return strings.TrimSpace(string(body))
}

// Replay sends the request a queued job describes. The job ID is sent as the
// Idempotency-Key so the server can drop a replay it already applied.
func (c *Client) Replay(ctx context.Context, job queue.Job) (*Response, error) {
	headers := make(map[string]string, len(job.Headers)+2)
	for k, v := range job.Headers {
		headers[k] = v
	}
	headers[HeaderIdempotencyKey] = job.ID
	headers[HeaderReplayAttempt] = strconv.Itoa(job.Attempts + 1)

	return c.Do(ctx, Request{
		Method:  job.Method,
		Path:    job.Endpoint,
		Body:    job.Body,
		Headers: headers,
	})
}

// GetJSON fetches path and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// SendJSON encodes in, sends it with method and decodes a non-empty response into out.
// out may be nil.
func (c *Client) SendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	resp, err := c.Do(ctx, Request{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(resp, out)
}

func decode(resp *Response, out interface{}) error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return errors.New("remote returned an empty body")
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
