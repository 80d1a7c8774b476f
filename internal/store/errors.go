// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreClosed is returned for any operation after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrNotFound is returned by Tx.Get for a missing key.
	ErrNotFound = errors.New("key not found")

	// ErrStopScan ends a Tx.Scan early without error.
	ErrStopScan = errors.New("stop scan")

	// ErrEmptyCollection is returned when a collection name is empty.
	ErrEmptyCollection = errors.New("collection name cannot be empty")
)

// StorageError is a failure of the storage layer itself: I/O, corruption,
// a closed store or an undecodable value. Callers may keep operating on
// in-memory state, but the failure is always returned and also published
// on Store.Errors.
type StorageError struct {
	Op        string
	Namespace string
	Key       string
	Err       error
}

func (e *StorageError) Error() string {
	var b strings.Builder
	b.WriteString("store ")
	b.WriteString(e.Op)
	if e.Key != "" {
		b.WriteString(" ")
		b.WriteString(e.Key)
	}
	return fmt.Sprintf("%s: %v", b.String(), e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var serr *StorageError
	return errors.As(err, &serr)
}

// namespaceOf returns the namespace of a raw key ("cache", "queue", "dead").
func namespaceOf(key []byte) string {
	s := string(key)
	if i := strings.IndexByte(s, ':'); i > 0 {
		return s[:i]
	}
	return ""
}
