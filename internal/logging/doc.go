// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

// Package logging provides the process-wide zerolog logger used by every
// Driftline component.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("job_id", job.ID).Msg("job enqueued")
//	logging.Ctx(ctx).Warn().Err(err).Msg("replay failed")
//
// # Adapters
//
// Two third-party libraries need their own logger interfaces:
//
//   - sutureslog takes a *slog.Logger: use NewSlogLogger.
//   - watermill takes a watermill.LoggerAdapter: use NewWatermillAdapter.
//
// Both forward to the global zerolog logger so supervisor restarts and
// signal bus diagnostics land in the same stream as application logs.
//
// # Conventions
//
// Terminate every chain with Msg or Send. Prefer structured fields
// (job_id, collection, attempts, status, trigger) over Msgf.
package logging
