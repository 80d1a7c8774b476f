// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package store

import (
	"fmt"
	"time"

	"github.com/tomtom215/driftline/internal/config"
)

// Config holds BadgerDB and maintenance settings for the local store.
type Config struct {
	// Path is the directory where BadgerDB keeps its files. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests and ephemeral deployments.
	InMemory bool

	// SyncWrites fsyncs after every write. Required for the queue durability guarantee.
	SyncWrites bool

	// Compression enables Snappy compression of values.
	Compression bool

	// MemTableSize is the size of each memtable in bytes.
	MemTableSize int64

	// ValueLogFileSize is the size of each value log file in bytes.
	ValueLogFileSize int64

	// NumCompactors is the number of Badger compaction workers (minimum 2).
	NumCompactors int

	// GCInterval is the time between maintenance runs.
	GCInterval time.Duration

	// GCRatio is the discard ratio passed to RunValueLogGC.
	GCRatio float64

	// DeadLetterTTL is how long dead letters are retained. Zero keeps them.
	DeadLetterTTL time.Duration

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration

	// ErrorBuffer is the capacity of the Errors channel. Errors beyond it are dropped and counted.
	ErrorBuffer int
}

// DefaultConfig returns durable defaults.
func DefaultConfig() Config {
	return Config{
		Path:             "/data/driftline",
		SyncWrites:       true,
		Compression:      true,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		GCInterval:       5 * time.Minute,
		GCRatio:          0.5,
		DeadLetterTTL:    7 * 24 * time.Hour,
		CloseTimeout:     30 * time.Second,
		ErrorBuffer:      64,
	}
}

// FromConfig overlays the store section of the config file on the
// defaults. Zero durations and ratios keep the default.
func FromConfig(c config.StoreConfig) Config {
	cfg := DefaultConfig()
	cfg.Path = c.Path
	cfg.InMemory = c.InMemory
	cfg.SyncWrites = c.SyncWrites
	cfg.Compression = c.Compression
	cfg.DeadLetterTTL = c.DeadLetterTTL
	if c.GCInterval > 0 {
		cfg.GCInterval = c.GCInterval
	}
	if c.GCRatio > 0 {
		cfg.GCRatio = c.GCRatio
	}
	if c.CloseTimeout > 0 {
		cfg.CloseTimeout = c.CloseTimeout
	}
	if c.ErrorBuffer > 0 {
		cfg.ErrorBuffer = c.ErrorBuffer
	}
	return cfg
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("store config: %s %s", e.Field, e.Message)
}

// Validate checks the configuration against production minimums.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return &ConfigError{Field: "Path", Message: "is required unless InMemory is set"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	if c.GCInterval < time.Second {
		return &ConfigError{Field: "GCInterval", Message: "must be at least 1 second"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1"}
	}
	if c.DeadLetterTTL < 0 {
		return &ConfigError{Field: "DeadLetterTTL", Message: "must not be negative"}
	}
	if c.ErrorBuffer < 0 {
		return &ConfigError{Field: "ErrorBuffer", Message: "must not be negative"}
	}
	return nil
}
