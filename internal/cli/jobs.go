// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/driftline/internal/queue"
)

const timeLayout = "2006-01-02 15:04:05.000"

// NewJobsCommand groups the pending job operations.
func NewJobsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List and edit pending mutation jobs",
	}
	cmd.AddCommand(newJobsListCommand(opts))
	cmd.AddCommand(newJobsShowCommand(opts))
	cmd.AddCommand(newJobsRemoveCommand(opts))
	cmd.AddCommand(newJobsTouchCommand(opts))
	cmd.AddCommand(newJobsBuryCommand(opts))
	return cmd
}

func newJobsListCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs in replay order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				jobs, err := s.queue.List(ctx, limit)
				if err != nil {
					return err
				}
				return out.Success(jobs, func(w io.Writer) {
					if len(jobs) == 0 {
						fmt.Fprintln(w, "No queued jobs.")
						return
					}
					fmt.Fprintln(w, "ID\tMETHOD\tENDPOINT\tATTEMPTS\tCREATED\tLAST ERROR")
					for _, j := range jobs {
						fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
							j.ID, j.Method, j.Endpoint, j.Attempts, j.CreatedAt.Format(timeLayout), j.LastError)
					}
				})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n jobs (0 for all)")
	return cmd
}

func newJobsShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one queued job including its body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				job, err := s.queue.Get(ctx, args[0])
				if err != nil {
					return notFound(err, args[0])
				}
				return out.Success(job, func(w io.Writer) {
					writeJob(w, job)
				})
			})
		},
	}
}

func newJobsRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>...",
		Short: "Drop jobs from the queue without replaying them",
		Long:  "Drop jobs from the queue without replaying them. Unknown IDs are ignored.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				for _, id := range args {
					if err := s.queue.Remove(ctx, id); err != nil {
						return fmt.Errorf("remove %s: %w", id, err)
					}
				}
				return out.Success(map[string]interface{}{"removed": args}, func(w io.Writer) {
					fmt.Fprintf(w, "Removed %d job(s).\n", len(args))
				})
			})
		},
	}
}

func newJobsTouchCommand(opts *RootOptions) *cobra.Command {
	var (
		attempts  int
		lastError string
	)
	cmd := &cobra.Command{
		Use:   "touch <job-id>",
		Short: "Set a job's attempt count and last error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				id := args[0]
				err := s.queue.Touch(ctx, id, queue.Patch{Attempts: attempts, LastError: lastError})
				if errors.Is(err, queue.ErrInvalidPatch) {
					return WrapExitError(ExitCommandError, "invalid --attempts", err)
				}
				if err != nil {
					return notFound(err, id)
				}
				job, err := s.queue.Get(ctx, id)
				if err != nil {
					return err
				}
				return out.Success(job, func(w io.Writer) {
					fmt.Fprintf(w, "Job %s now has %d attempt(s).\n", job.ID, job.Attempts)
				})
			})
		},
	}
	cmd.Flags().IntVar(&attempts, "attempts", 0, "attempt count to store")
	cmd.Flags().StringVar(&lastError, "error", "", "last error to store")
	return cmd
}

func newJobsBuryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bury <job-id>",
		Short: "Move a job to the dead letter list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, s *session, out *Formatter) error {
				dl, err := s.queue.Bury(ctx, args[0], queue.ReasonManual, 0)
				if err != nil {
					return notFound(err, args[0])
				}
				return out.Success(dl, func(w io.Writer) {
					fmt.Fprintf(w, "Job %s moved to dead letters.\n", dl.ID)
				})
			})
		},
	}
}

// notFound maps queue.ErrJobNotFound to ExitFailure with the ID in the message.
func notFound(err error, id string) error {
	if errors.Is(err, queue.ErrJobNotFound) {
		return WrapExitError(ExitFailure, fmt.Sprintf("no job %q", id), err)
	}
	return err
}

func writeJob(w io.Writer, j queue.Job) {
	fmt.Fprintf(w, "ID:\t%s\n", j.ID)
	fmt.Fprintf(w, "Kind:\t%s\n", j.Kind)
	fmt.Fprintf(w, "Request:\t%s %s\n", j.Method, j.Endpoint)
	for k, v := range j.Headers {
		fmt.Fprintf(w, "Header:\t%s: %s\n", k, v)
	}
	fmt.Fprintf(w, "Created:\t%s\n", j.CreatedAt.Format(timeLayout))
	fmt.Fprintf(w, "Attempts:\t%d\n", j.Attempts)
	if j.LastAttemptAt != nil {
		fmt.Fprintf(w, "Last attempt:\t%s (%s ago)\n",
			j.LastAttemptAt.Format(timeLayout), time.Since(*j.LastAttemptAt).Round(time.Second))
	}
	if j.LastError != "" {
		fmt.Fprintf(w, "Last error:\t%s\n", j.LastError)
	}
	if len(j.Body) > 0 {
		fmt.Fprintf(w, "Body:\t%s\n", j.Body)
	}
}
