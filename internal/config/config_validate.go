// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateCheckIn(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	if c.Store.GCRatio <= 0 || c.Store.GCRatio >= 1 {
		return fmt.Errorf("STORE_GC_RATIO must be between 0 and 1 (exclusive)")
	}
	if c.Store.GCInterval < time.Second {
		return fmt.Errorf("STORE_GC_INTERVAL must be at least 1s")
	}
	if c.Store.DeadLetterTTL < 0 {
		return fmt.Errorf("STORE_DEAD_LETTER_TTL must not be negative")
	}
	if c.Store.ErrorBuffer < 0 {
		return fmt.Errorf("STORE_ERROR_BUFFER must not be negative")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("REMOTE_BASE_URL is required")
	}
	if err := validateHTTPURL(c.Remote.BaseURL); err != nil {
		return fmt.Errorf("REMOTE_BASE_URL is invalid: %w", err)
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive")
	}
	if c.Remote.RateLimit < 0 {
		return fmt.Errorf("REMOTE_RATE_LIMIT must not be negative")
	}
	if c.Remote.RateLimit > 0 && c.Remote.Burst < 1 {
		return fmt.Errorf("REMOTE_BURST must be at least 1 when REMOTE_RATE_LIMIT is set")
	}
	if c.Remote.BreakerEnabled {
		if c.Remote.BreakerFailRatio <= 0 || c.Remote.BreakerFailRatio > 1 {
			return fmt.Errorf("REMOTE_BREAKER_FAIL_RATIO must be in (0, 1]")
		}
		if c.Remote.BreakerTimeout <= 0 {
			return fmt.Errorf("REMOTE_BREAKER_TIMEOUT must be positive")
		}
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.BatchSize < 1 || c.Sync.BatchSize > 10000 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be between 1 and 10000")
	}
	if c.Sync.MaxAttempts < 0 {
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must not be negative (0 retries forever)")
	}
	if c.Sync.RetryBackoff < 0 || c.Sync.MaxBackoff < 0 {
		return fmt.Errorf("SYNC_RETRY_BACKOFF and SYNC_MAX_BACKOFF must not be negative")
	}
	if c.Sync.MaxBackoff > 0 && c.Sync.MaxBackoff < c.Sync.RetryBackoff {
		return fmt.Errorf("SYNC_MAX_BACKOFF must be at least SYNC_RETRY_BACKOFF")
	}
	if c.Sync.RetryInterval < 0 {
		return fmt.Errorf("SYNC_RETRY_INTERVAL must not be negative (0 disables the retry loop)")
	}
	if c.Sync.ReplayTimeout <= 0 {
		return fmt.Errorf("SYNC_REPLAY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if !c.Connectivity.ProbeEnabled {
		return nil
	}
	if c.Connectivity.ProbeURL != "" {
		if err := validateHTTPURL(c.Connectivity.ProbeURL); err != nil {
			return fmt.Errorf("CONNECTIVITY_PROBE_URL is invalid: %w", err)
		}
	}
	if c.Connectivity.ProbeInterval < time.Second {
		return fmt.Errorf("CONNECTIVITY_PROBE_INTERVAL must be at least 1s")
	}
	if c.Connectivity.ProbeTimeout <= 0 || c.Connectivity.ProbeTimeout > c.Connectivity.ProbeInterval {
		return fmt.Errorf("CONNECTIVITY_PROBE_TIMEOUT must be positive and not exceed the probe interval")
	}
	return nil
}

func (c *Config) validateCheckIn() error {
	if c.CheckIn.TTL <= 0 {
		return fmt.Errorf("CHECKIN_TTL must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits bounds the inbound rate limiter on the local API.
func (c *Config) validateRateLimits() error {
	if c.Server.RateLimitDisabled {
		return nil
	}
	if c.Server.RateLimitReqs < minRateLimitRequests || c.Server.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateHTTPURL checks that raw is an absolute http(s) URL with a host.
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Addr returns the host:port the local API listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
