// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package config

import (
	"time"
)

// Config is the root configuration for the Driftline daemon.
type Config struct {
	Store        StoreConfig        `koanf:"store"`
	Remote       RemoteConfig       `koanf:"remote"`
	Sync         SyncConfig         `koanf:"sync"`
	Connectivity ConnectivityConfig `koanf:"connectivity"`
	Session      SessionConfig      `koanf:"session"`
	CheckIn      CheckInConfig      `koanf:"checkin"`
	Server       ServerConfig       `koanf:"server"`
	Supervisor   SupervisorConfig   `koanf:"supervisor"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// StoreConfig configures the durable local store (BadgerDB).
type StoreConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory runs Badger without touching disk. Nothing survives a restart.
	InMemory bool `koanf:"in_memory"`

	// SyncWrites fsyncs every write. Queue durability depends on it.
	SyncWrites bool `koanf:"sync_writes"`

	// Compression enables Snappy compression of values.
	Compression bool `koanf:"compression"`

	// GCInterval is how often the maintenance loop runs value log GC and expires dead letters.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCRatio is passed to badger's RunValueLogGC.
	GCRatio float64 `koanf:"gc_ratio"`

	// DeadLetterTTL is how long buried jobs are kept. Zero keeps them forever.
	DeadLetterTTL time.Duration `koanf:"dead_letter_ttl"`

	// CloseTimeout bounds how long Close waits for Badger.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// ErrorBuffer is the capacity of the storage error channel.
	ErrorBuffer int `koanf:"error_buffer"`
}

// RemoteConfig configures the HTTP client used for live writes, refetches and replay.
type RemoteConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is the sustained requests/second allowed against the remote API. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`

	// Circuit breaker settings.
	BreakerEnabled     bool          `koanf:"breaker_enabled"`
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests uint32        `koanf:"breaker_min_requests"`
	BreakerFailRatio   float64       `koanf:"breaker_fail_ratio"`

	// Headers are added to every outgoing request unless the request sets them itself.
	Headers map[string]string `koanf:"headers"`
}

// SyncConfig configures the sync engine and its retry policy.
type SyncConfig struct {
	// BatchSize is how many jobs one flush reads from the queue.
	BatchSize int `koanf:"batch_size"`

	// MaxAttempts buries a job after this many failed replays. Zero retries forever.
	MaxAttempts int `koanf:"max_attempts"`

	// DeadLetterPermanent buries jobs on the first non-retryable (4xx) response.
	DeadLetterPermanent bool `koanf:"dead_letter_permanent"`

	// RetryBackoff is the base delay used by the periodic retry loop.
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	MaxBackoff   time.Duration `koanf:"max_backoff"`

	// RetryInterval is the tick of the periodic retry loop. Zero disables the loop.
	RetryInterval time.Duration `koanf:"retry_interval"`

	// ReplayTimeout bounds a single replayed request.
	ReplayTimeout time.Duration `koanf:"replay_timeout"`

	// FlushOnStart runs a flush as soon as the engine service starts.
	FlushOnStart bool `koanf:"flush_on_start"`
}

// ConnectivityConfig configures the online/offline monitor.
type ConnectivityConfig struct {
	StartOnline   bool          `koanf:"start_online"`
	ProbeEnabled  bool          `koanf:"probe_enabled"`
	ProbeURL      string        `koanf:"probe_url"`
	ProbeInterval time.Duration `koanf:"probe_interval"`
	ProbeTimeout  time.Duration `koanf:"probe_timeout"`
}

// SessionConfig identifies the single logical user whose writes are queued.
type SessionConfig struct {
	UserID string `koanf:"user_id"`
}

// CheckInConfig configures the check-in coordinator.
type CheckInConfig struct {
	// TTL is the client-computed lifetime of a check-in, used for optimistic entities.
	TTL time.Duration `koanf:"ttl"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// SupervisorConfig holds suture tuning.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller adds file:line to every log line.
	Caller bool `koanf:"caller"`
}

// Load reads configuration from defaults, an optional YAML file and the environment.
// See LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
