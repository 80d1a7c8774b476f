// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/driftline/internal/queue"
	"github.com/tomtom215/driftline/internal/store"
)

// StoreStats is the output of `stats`.
type StoreStats struct {
	Path        string      `json:"path"`
	Queue       queue.Stats `json:"queue"`
	Collections int         `json:"collections"`
	LSMBytes    int64       `json:"lsm_bytes"`
	VLogBytes   int64       `json:"vlog_bytes"`
}

// NewStatsCommand reports queue depth, dead letters and store size.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the queue, dead letters and store size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				qs, err := s.queue.Stats(ctx)
				if err != nil {
					return err
				}
				names, err := store.ListCollections(ctx, s.store)
				if err != nil {
					return err
				}
				lsm, vlog := s.store.Size()
				st := StoreStats{
					Path:        s.store.Config().Path,
					Queue:       qs,
					Collections: len(names),
					LSMBytes:    lsm,
					VLogBytes:   vlog,
				}
				return out.Success(st, func(w io.Writer) {
					fmt.Fprintf(w, "Store:\t%s\n", st.Path)
					fmt.Fprintf(w, "Queued jobs:\t%d\n", qs.Depth)
					if qs.OldestCreatedAt != nil {
						fmt.Fprintf(w, "Oldest job:\t%s (%s ago)\n", qs.OldestCreatedAt.Format(timeLayout),
							(time.Duration(qs.OldestAge) * time.Second).String())
					}
					fmt.Fprintf(w, "Most attempts:\t%d\n", qs.MaxAttempts)
					fmt.Fprintf(w, "Dead letters:\t%d\n", qs.Dead)
					fmt.Fprintf(w, "Collections:\t%d\n", st.Collections)
					fmt.Fprintf(w, "Size:\tlsm %d B, vlog %d B\n", lsm, vlog)
				})
			})
		},
	}
}
