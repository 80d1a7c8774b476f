// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/driftline/internal/store"
)

// CollectionSummary is one row of `cache list`.
type CollectionSummary struct {
	Name  string `json:"name"`
	Items int    `json:"items"`
}

// NewCacheCommand groups the cached collection operations.
func NewCacheCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Show and clear cached collections",
	}
	cmd.AddCommand(newCacheListCommand(opts))
	cmd.AddCommand(newCacheShowCommand(opts))
	cmd.AddCommand(newCacheClearCommand(opts))
	return cmd
}

func newCacheListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				names, err := store.ListCollections(ctx, s.store)
				if err != nil {
					return err
				}
				summaries := make([]CollectionSummary, 0, len(names))
				for _, name := range names {
					items, err := store.ReadCollection[json.RawMessage](ctx, s.store, name)
					if err != nil {
						return err
					}
					summaries = append(summaries, CollectionSummary{Name: name, Items: len(items)})
				}
				return out.Success(summaries, func(w io.Writer) {
					if len(summaries) == 0 {
						fmt.Fprintln(w, "No cached collections.")
						return
					}
					fmt.Fprintln(w, "COLLECTION\tITEMS")
					for _, c := range summaries {
						fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Items)
					}
				})
			})
		},
	}
}

func newCacheShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <collection>",
		Short: "Print every item of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				items, err := store.ReadCollection[json.RawMessage](ctx, s.store, args[0])
				if err != nil {
					return err
				}
				return out.Success(items, func(w io.Writer) {
					if len(items) == 0 {
						fmt.Fprintf(w, "Collection %q is empty.\n", args[0])
						return
					}
					for _, item := range items {
						fmt.Fprintf(w, "%s\n", item)
					}
				})
			})
		},
	}
}

func newCacheClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <collection>...",
		Short: "Delete cached collections; the daemon refetches them on the next sync",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				for _, name := range args {
					if err := store.DeleteCollection(ctx, s.store, name); err != nil {
						return fmt.Errorf("clear %s: %w", name, err)
					}
				}
				return out.Success(map[string]interface{}{"cleared": args}, func(w io.Writer) {
					fmt.Fprintf(w, "Cleared %d collection(s).\n", len(args))
				})
			})
		},
	}
}
