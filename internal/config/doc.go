// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

/*
Package config provides centralized configuration management for Driftline.

Configuration is layered with Koanf:

 1. Built-in defaults (defaultConfig)
 2. A YAML file: CONFIG_PATH, or the first of driftline.yaml, driftline.yml,
    config.yaml, config.yml, /etc/driftline/config.yaml, /etc/driftline/config.yml
 3. Environment variables (highest priority)

Only environment variables listed in the mapping table are read, so unrelated
environment never leaks into configuration.

# Sections

  - store: BadgerDB path, durability, GC cadence, dead-letter retention
  - remote: base URL, timeout, outbound rate limit, circuit breaker
  - sync: batch size, attempt cap, retry backoff, periodic retry interval
  - connectivity: initial online state and the optional reachability probe
  - session: the user whose writes are queued
  - checkin: client-side check-in lifetime used for optimistic entities
  - server: local HTTP API bind address, CORS and inbound rate limits
  - supervisor: suture failure thresholds
  - logging: level, format, caller

# Environment Variables

Store:
  - STORE_PATH (default: /data/driftline)
  - STORE_IN_MEMORY (default: false)
  - STORE_SYNC_WRITES (default: true)
  - STORE_GC_INTERVAL (default: 5m)
  - STORE_DEAD_LETTER_TTL (default: 168h)

Remote:
  - REMOTE_BASE_URL (default: http://127.0.0.1:8080)
  - REMOTE_TIMEOUT (default: 10s)
  - REMOTE_RATE_LIMIT, REMOTE_BURST (default: 20/s, 40)
  - REMOTE_BREAKER_ENABLED (default: true)

Sync:
  - SYNC_BATCH_SIZE (default: 100)
  - SYNC_MAX_ATTEMPTS (default: 10, 0 retries forever)
  - SYNC_DEAD_LETTER_PERMANENT (default: true)
  - SYNC_RETRY_BACKOFF, SYNC_MAX_BACKOFF (default: 5s, 10m)
  - SYNC_RETRY_INTERVAL (default: 30s, 0 disables the loop)

Server and logging:
  - HTTP_HOST, HTTP_PORT (default: 127.0.0.1:4780)
  - CORS_ORIGINS (comma-separated)
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal().Err(err).Msg("Failed to load configuration")
	}
*/
package config
