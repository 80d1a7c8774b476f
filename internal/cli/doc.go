// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

// Package cli implements driftlinectl, the offline admin tool for a Driftline
// data directory.
//
// BadgerDB holds an exclusive directory lock, so every command requires the
// daemon to be stopped. Commands:
//
//	driftlinectl jobs list|show|remove|touch|bury
//	driftlinectl dead list|requeue|purge
//	driftlinectl cache list|show|clear
//	driftlinectl stats
//
// Every command accepts --format json, which wraps the result in
// {"status":"ok","data":...}. Exit codes are ExitSuccess, ExitFailure for a
// missing job and ExitCommandError for usage or store errors.
package cli
