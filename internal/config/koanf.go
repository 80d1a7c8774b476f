// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"driftline.yaml",
	"driftline.yml",
	"config.yaml",
	"config.yml",
	"/etc/driftline/config.yaml",
	"/etc/driftline/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths are keys that accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// defaultConfig returns a Config with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:          "/data/driftline",
			InMemory:      false,
			SyncWrites:    true, // a lost queued write is a lost user action
			Compression:   true,
			GCInterval:    5 * time.Minute,
			GCRatio:       0.5,
			DeadLetterTTL: 7 * 24 * time.Hour,
			CloseTimeout:  30 * time.Second,
			ErrorBuffer:   64,
		},
		Remote: RemoteConfig{
			BaseURL:            "http://127.0.0.1:8080",
			Timeout:            10 * time.Second,
			RateLimit:          20,
			Burst:              40,
			BreakerEnabled:     true,
			BreakerMaxRequests: 3,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     30 * time.Second,
			BreakerMinRequests: 5,
			BreakerFailRatio:   0.6,
		},
		Sync: SyncConfig{
			BatchSize:           100,
			MaxAttempts:         10,
			DeadLetterPermanent: true,
			RetryBackoff:        5 * time.Second,
			MaxBackoff:          10 * time.Minute,
			RetryInterval:       30 * time.Second,
			ReplayTimeout:       15 * time.Second,
			FlushOnStart:        true,
		},
		Connectivity: ConnectivityConfig{
			StartOnline:   true,
			ProbeEnabled:  false,
			ProbeURL:      "",
			ProbeInterval: 15 * time.Second,
			ProbeTimeout:  3 * time.Second,
		},
		Session: SessionConfig{
			UserID: "",
		},
		CheckIn: CheckInConfig{
			TTL: 2 * time.Hour,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            4780,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources:
//  1. Defaults (defaultConfig)
//  2. Config file (CONFIG_PATH or the first of DefaultConfigPaths that exists)
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	cfg, err := loadLayers()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadStore loads the same layers as LoadWithKoanf but validates only the
// store section. Offline tooling that never talks to the remote uses it.
func LoadStore() (StoreConfig, error) {
	cfg, err := loadLayers()
	if err != nil {
		return StoreConfig{}, err
	}
	if err := cfg.validateStore(); err != nil {
		return StoreConfig{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg.Store, nil
}

func loadLayers() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Environment variables
	// REMOTE_BASE_URL -> remote.base_url
	// SYNC_MAX_ATTEMPTS -> sync.max_attempts
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the config file to load, or "" when none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// processSliceFields converts comma-separated env values into string slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Store
	"store_path":            "store.path",
	"store_in_memory":       "store.in_memory",
	"store_sync_writes":     "store.sync_writes",
	"store_compression":     "store.compression",
	"store_gc_interval":     "store.gc_interval",
	"store_gc_ratio":        "store.gc_ratio",
	"store_dead_letter_ttl": "store.dead_letter_ttl",
	"store_close_timeout":   "store.close_timeout",
	"store_error_buffer":    "store.error_buffer",

	// Remote API
	"remote_base_url":             "remote.base_url",
	"remote_timeout":              "remote.timeout",
	"remote_rate_limit":           "remote.rate_limit",
	"remote_burst":                "remote.burst",
	"remote_breaker_enabled":      "remote.breaker_enabled",
	"remote_breaker_max_requests": "remote.breaker_max_requests",
	"remote_breaker_interval":     "remote.breaker_interval",
	"remote_breaker_timeout":      "remote.breaker_timeout",
	"remote_breaker_min_requests": "remote.breaker_min_requests",
	"remote_breaker_fail_ratio":   "remote.breaker_fail_ratio",

	// Sync engine
	"sync_batch_size":            "sync.batch_size",
	"sync_max_attempts":          "sync.max_attempts",
	"sync_dead_letter_permanent": "sync.dead_letter_permanent",
	"sync_retry_backoff":         "sync.retry_backoff",
	"sync_max_backoff":           "sync.max_backoff",
	"sync_retry_interval":        "sync.retry_interval",
	"sync_replay_timeout":        "sync.replay_timeout",
	"sync_flush_on_start":        "sync.flush_on_start",

	// Connectivity
	"connectivity_start_online":   "connectivity.start_online",
	"connectivity_probe_enabled":  "connectivity.probe_enabled",
	"connectivity_probe_url":      "connectivity.probe_url",
	"connectivity_probe_interval": "connectivity.probe_interval",
	"connectivity_probe_timeout":  "connectivity.probe_timeout",

	// Session and coordinators
	"session_user_id": "session.user_id",
	"checkin_ttl":     "checkin.ttl",

	// HTTP server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_reqs":       "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" so unrelated environment does not leak into config.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
