// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package store

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tomtom215/driftline/internal/logging"
)

// Key namespaces. Each namespace can be cleared without touching the others.
const (
	PrefixCache = "cache:"
	PrefixQueue = "queue:"
	PrefixDead  = "dead:"
)

// Store is the durable local store: a BadgerDB instance split into
// namespaces for cached collections, the mutation queue and dead letters.
//
// A Store is safe for concurrent use. Read-modify-write of a single
// collection is serialized per collection name.
type Store struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool

	// collection locks, keyed by collection name
	locks sync.Map

	errs chan *StorageError
}

// Open creates or opens the store described by cfg.
func Open(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	s, err := open(cfg)
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Bool("compression", cfg.Compression).
		Msg("Store opened")
	return s, nil
}

// OpenForTesting opens a store without validation, filling in the Badger minimums.
// WARNING: Do not use in production code.
func OpenForTesting(cfg *Config) (*Store, error) {
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2
	}
	if cfg.MemTableSize == 0 {
		cfg.MemTableSize = 16 * 1024 * 1024
	}
	if cfg.ValueLogFileSize == 0 {
		cfg.ValueLogFileSize = 16 * 1024 * 1024
	}
	if cfg.GCRatio == 0 {
		cfg.GCRatio = 0.5
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = 30 * time.Second
	}
	if cfg.ErrorBuffer == 0 {
		cfg.ErrorBuffer = 16
	}
	return open(cfg)
}

func open(cfg *Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}

	// Badger's own logger is noisy; store errors are logged by us.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	return &Store{
		db:     db,
		config: *cfg,
		errs:   make(chan *StorageError, cfg.ErrorBuffer),
	}, nil
}

// Errors returns the channel on which every storage failure is published.
// Delivery is best effort: when nobody reads and the buffer is full, the error
// is counted and dropped. The returned error value is authoritative.
func (s *Store) Errors() <-chan *StorageError {
	return s.errs
}

// Config returns the configuration the store was opened with.
func (s *Store) Config() Config {
	return s.config
}

// publish logs, counts and forwards a storage error.
func (s *Store) publish(serr *StorageError) {
	storeErrorsTotal.WithLabelValues(serr.Op, serr.Namespace).Inc()
	logging.Warn().
		Err(serr.Err).
		Str("op", serr.Op).
		Str("namespace", serr.Namespace).
		Str("key", serr.Key).
		Msg("Storage error")

	select {
	case s.errs <- serr:
	default:
		storeErrorsDropped.Inc()
	}
}

func (s *Store) checkOpen(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		serr := &StorageError{Op: op, Err: ErrStoreClosed}
		s.publish(serr)
		return serr
	}
	return nil
}

// View runs fn in a read-only snapshot transaction.
func (s *Store) View(op string, fn func(tx *Tx) error) error {
	if err := s.checkOpen(op); err != nil {
		return err
	}
	start := time.Now()
	defer observe(op, start)

	var fnErr error
	err := s.db.View(func(txn *badger.Txn) error {
		fnErr = fn(&Tx{txn: txn, op: op})
		return fnErr
	})
	return s.settle(op, err, fnErr)
}

// Update runs fn in a read-write transaction that commits atomically.
// Errors returned by fn that are not storage errors are passed through unchanged
// and abort the transaction.
func (s *Store) Update(op string, fn func(tx *Tx) error) error {
	if err := s.checkOpen(op); err != nil {
		return err
	}
	start := time.Now()
	defer observe(op, start)

	var fnErr error
	err := s.db.Update(func(txn *badger.Txn) error {
		fnErr = fn(&Tx{txn: txn, op: op})
		return fnErr
	})
	return s.settle(op, err, fnErr)
}

func observe(op string, start time.Time) {
	storeOpsTotal.WithLabelValues(op).Inc()
	storeOpLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// settle classifies a transaction result. Storage errors are published once;
// domain errors from fn are returned as-is; anything else (commit failures)
// becomes a StorageError.
func (s *Store) settle(op string, err, fnErr error) error {
	if err == nil {
		return nil
	}
	var serr *StorageError
	if errors.As(err, &serr) {
		s.publish(serr)
		return err
	}
	if fnErr != nil && errors.Is(err, fnErr) {
		return err
	}
	serr = &StorageError{Op: op, Err: err}
	s.publish(serr)
	return serr
}

// lockCollection serializes read-modify-write on one collection.
func (s *Store) lockCollection(name string) func() {
	v, _ := s.locks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Size returns the LSM and value log sizes in bytes.
func (s *Store) Size() (lsm, vlog int64) {
	lsm, vlog = s.db.Size()
	storeDBSizeBytes.Set(float64(lsm + vlog))
	return lsm, vlog
}

// RunGC runs value log GC until Badger reports nothing left to rewrite.
func (s *Store) RunGC() error {
	if err := s.checkOpen("gc"); err != nil {
		return err
	}
	if s.config.InMemory {
		return nil
	}

	start := time.Now()
	defer func() {
		storeGCLatency.Observe(time.Since(start).Seconds())
		storeGCRuns.Inc()
	}()

	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			serr := &StorageError{Op: "gc", Err: err}
			s.publish(serr)
			return serr
		}
	}
}

// Close shuts Badger down, giving up after CloseTimeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s.mu.Unlock()

	logging.Info().Msg("Closing store")

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Store closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// Tx is a store transaction. It is only valid inside the View or Update
// callback that produced it.
type Tx struct {
	txn *badger.Txn
	op  string
}

func (tx *Tx) fail(key []byte, err error) *StorageError {
	return &StorageError{Op: tx.op, Namespace: namespaceOf(key), Key: string(key), Err: err}
}

// Get returns a copy of the value at key, or ErrNotFound.
func (tx *Tx) Get(key []byte) ([]byte, error) {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, tx.fail(key, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, tx.fail(key, err)
	}
	return val, nil
}

// Set writes val at key.
func (tx *Tx) Set(key, val []byte) error {
	if err := tx.txn.Set(key, val); err != nil {
		return tx.fail(key, err)
	}
	return nil
}

// SetWithTTL writes val at key; Badger drops it after ttl. A zero ttl never expires.
func (tx *Tx) SetWithTTL(key, val []byte, ttl time.Duration) error {
	e := badger.NewEntry(key, val)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	if err := tx.txn.SetEntry(e); err != nil {
		return tx.fail(key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (tx *Tx) Delete(key []byte) error {
	if err := tx.txn.Delete(key); err != nil {
		return tx.fail(key, err)
	}
	return nil
}

// Scan calls fn for every key under prefix in ascending key order.
// Returning ErrStopScan from fn ends the scan without error.
func (tx *Tx) Scan(prefix []byte, fn func(key, val []byte) error) error {
	return tx.scan(prefix, true, false, func(item *badger.Item) error {
		val, err := item.ValueCopy(nil)
		if err != nil {
			return tx.fail(item.Key(), err)
		}
		return fn(item.KeyCopy(nil), val)
	})
}

// ScanKeys is Scan without fetching values.
func (tx *Tx) ScanKeys(prefix []byte, fn func(key []byte) error) error {
	return tx.scan(prefix, false, false, func(item *badger.Item) error {
		return fn(item.KeyCopy(nil))
	})
}

// Last returns the greatest key under prefix, or ErrNotFound.
func (tx *Tx) Last(prefix []byte) ([]byte, error) {
	var last []byte
	err := tx.scan(prefix, false, true, func(item *badger.Item) error {
		last = item.KeyCopy(nil)
		return ErrStopScan
	})
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrNotFound
	}
	return last, nil
}

func (tx *Tx) scan(prefix []byte, values, reverse bool, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = values
	opts.Reverse = reverse
	opts.Prefix = prefix
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if reverse {
		seek = append(bytes.Clone(prefix), 0xFF)
	}
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		if err := fn(it.Item()); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}
