// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
)

// Exit codes for driftlinectl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran but its target was missing or rejected
	ExitCommandError = 2 // bad flags, unreadable store, daemon holding the lock
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Plain errors map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope of every command in --format json.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
	Error  string      `json:"error,omitempty"`
}

// Formatter writes command results as text tables or JSON.
type Formatter struct {
	Format string
	Writer io.Writer
}

// Success writes data. In text mode render draws it onto a tabwriter.
func (f *Formatter) Success(data interface{}, render func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(Response{Status: "ok", Data: data})
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	render(tw)
	return tw.Flush()
}

// Failure writes err as a JSON envelope in json mode. Text mode leaves the
// message to main, which prints it on stderr.
func (f *Formatter) Failure(err error) {
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: err.Error()})
	}
}
