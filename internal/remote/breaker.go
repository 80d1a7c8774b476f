// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package remote

import (
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/metrics"
)

const breakerName = "remote-api"

// newBreaker builds the circuit breaker guarding the remote API.
// It opens when the failure ratio reaches BreakerFailRatio over at least
// BreakerMinRequests requests; only network errors and retryable statuses
// count as failures.
func newBreaker(cfg config.RemoteConfig) *gobreaker.CircuitBreaker[*Response] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			trip := ratio >= cfg.BreakerFailRatio
			if trip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return trip
		},

		IsSuccessful: breakerSuccess,

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})
}

func recordBreakerResult(cb *gobreaker.CircuitBreaker[*Response], err error) {
	switch {
	case err == nil || breakerSuccess(err):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)
	case isBreakerRejection(err):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(float64(cb.Counts().ConsecutiveFailures))
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
