// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the circuit breaker rejects requests.
var ErrCircuitOpen = errors.New("remote circuit breaker open")

// StatusError is a response outside 2xx. The server was reachable.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote %s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("remote %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// NetworkError is a request that produced no response: DNS, dial, reset,
// timeout or an open circuit breaker.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNetworkError reports whether err means the remote was not reached.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRetryable reports whether replaying the same request later may succeed:
// network failures, 5xx, 408 and 429.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsNetworkError(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	code := StatusCode(err)
	switch {
	case code == 0:
		return true
	case code >= 500:
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether the server rejected the request in a way a
// retry cannot fix (4xx other than 408 and 429).
func IsPermanent(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500 && !IsRetryable(err)
}

// breakerSuccess decides what the circuit breaker counts as a failure.
// A 4xx is the caller's problem, not the remote's health.
func breakerSuccess(err error) bool {
	return err == nil || IsPermanent(err)
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
