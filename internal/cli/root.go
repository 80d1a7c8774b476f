// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/driftline/internal/config"
	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/store"
)

// RootOptions holds the global flags.
type RootOptions struct {
	DataDir string
	Format  string
	Verbose bool
}

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the driftlinectl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "driftlinectl",
		Short: "Inspect and repair a Driftline data directory",
		Long: `driftlinectl operates directly on the BadgerDB directory of a stopped
Driftline daemon: pending jobs, dead letters, cached collections.

The directory comes from --data-dir, or from the daemon's own configuration
(STORE_PATH, CONFIG_PATH, config.yaml) when the flag is omitted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			logging.Init(logging.Config{
				Level:     level,
				Format:    "console",
				Timestamp: true,
				Output:    cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.DataDir, "data-dir", "d", "", "store directory (defaults to the configured store.path)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log store activity to stderr")

	cmd.AddCommand(NewJobsCommand(opts))
	cmd.AddCommand(NewDeadCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session is an open store plus the queue over it.
type session struct {
	store *store.Store
	queue *queue.Queue
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing store")
	}
}

// storeConfig resolves the store to open. An explicit --data-dir wins over
// the daemon configuration.
func storeConfig(opts *RootOptions) (store.Config, error) {
	if opts.DataDir != "" {
		cfg := store.DefaultConfig()
		cfg.Path = opts.DataDir
		return cfg, nil
	}
	sc, err := config.LoadStore()
	if err != nil {
		return store.Config{}, err
	}
	return store.FromConfig(sc), nil
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg, err := storeConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load store configuration", err)
	}
	if cfg.InMemory {
		return nil, WrapExitError(ExitCommandError, "the configured store is in-memory; nothing to inspect", nil)
	}

	s, err := store.Open(&cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError,
			fmt.Sprintf("failed to open store at %s (is the daemon still running?)", cfg.Path), err)
	}
	q, err := queue.New(ctx, s)
	if err != nil {
		_ = s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open queue", err)
	}
	return &session{store: s, queue: q}, nil
}

// run opens a session, hands it to fn and reports fn's error in the
// configured format.
func run(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session, out *Formatter) error) error {
	out := &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	s, err := openSession(cmd.Context(), opts)
	if err != nil {
		out.Failure(err)
		return err
	}
	defer s.Close()

	if err := fn(cmd.Context(), s, out); err != nil {
		out.Failure(err)
		return err
	}
	return nil
}
