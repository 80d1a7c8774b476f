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
)

// NewDeadCommand groups the dead letter operations.
func NewDeadCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dead",
		Short: "Inspect, requeue and purge dead letters",
	}
	cmd.AddCommand(newDeadListCommand(opts))
	cmd.AddCommand(newDeadRequeueCommand(opts))
	cmd.AddCommand(newDeadPurgeCommand(opts))
	return cmd
}

func newDeadListCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				dead, err := s.queue.ListDead(ctx, limit)
				if err != nil {
					return err
				}
				return out.Success(dead, func(w io.Writer) {
					if len(dead) == 0 {
						fmt.Fprintln(w, "No dead letters.")
						return
					}
					fmt.Fprintln(w, "ID\tMETHOD\tENDPOINT\tREASON\tSTATUS\tATTEMPTS\tDIED")
					for _, d := range dead {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
							d.ID, d.Method, d.Endpoint, d.Reason, d.StatusCode, d.Attempts, d.DeadAt.Format(timeLayout))
					}
				})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n dead letters (0 for all)")
	return cmd
}

func newDeadRequeueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <job-id>...",
		Short: "Put dead letters back in the queue at their original position",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				requeued := make([]string, 0, len(args))
				for _, id := range args {
					job, err := s.queue.Requeue(ctx, id)
					if err != nil {
						return notFound(err, id)
					}
					requeued = append(requeued, job.ID)
				}
				return out.Success(map[string]interface{}{"requeued": requeued}, func(w io.Writer) {
					fmt.Fprintf(w, "Requeued %d job(s).\n", len(requeued))
				})
			})
		},
	}
}

func newDeadPurgeCommand(opts *RootOptions) *cobra.Command {
	var (
		olderThan time.Duration
		all       bool
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete dead letters",
		Long:  "Delete dead letters that died more than --older-than ago, or every dead letter with --all.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && olderThan <= 0 {
				return WrapExitError(ExitCommandError, "pass --older-than or --all", nil)
			}
			if all {
				olderThan = 0
			}
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				n, err := s.queue.PurgeDead(ctx, olderThan)
				if err != nil {
					return err
				}
				return out.Success(map[string]int{"purged": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Purged %d dead letter(s).\n", n)
				})
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only purge dead letters older than this")
	cmd.Flags().BoolVar(&all, "all", false, "purge every dead letter")
	return cmd
}
