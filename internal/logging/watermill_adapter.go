// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package logging

import (
	"sort"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillAdapter implements watermill.LoggerAdapter on top of zerolog so
// the signal bus logs in the same format as everything else.
type WatermillAdapter struct {
	logger zerolog.Logger
	fields watermill.LogFields
}

// NewWatermillAdapter returns an adapter over the global logger tagged with component=watermill.
func NewWatermillAdapter() *WatermillAdapter {
	return &WatermillAdapter{logger: WithComponent("watermill")}
}

// NewWatermillAdapterWithLogger returns an adapter over the given logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWatermillAdapterWithLogger(logger zerolog.Logger) *WatermillAdapter {
	return &WatermillAdapter{logger: logger}
}

// Error implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.emit(a.logger.Error().Err(err), msg, fields)
}

// Info implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.emit(a.logger.Info(), msg, fields)
}

// Debug implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.emit(a.logger.Debug(), msg, fields)
}

// Trace implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.emit(a.logger.Trace(), msg, fields)
}

// With implements watermill.LoggerAdapter.
func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{logger: a.logger, fields: a.fields.Add(fields)}
}

func (a *WatermillAdapter) emit(event *zerolog.Event, msg string, fields watermill.LogFields) {
	all := a.fields.Add(fields)
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		event = event.Interface(k, all[k])
	}
	event.Msg(msg)
}
