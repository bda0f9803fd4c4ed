// Package cli implements portalctl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"shipmentportal/internal/worker"
)

// Backend is what the commands operate on.
type Backend interface {
	CreateAdmin(ctx context.Context, email, password, fullName, team string) (int64, error)
	RunJob(ctx context.Context, job string) error
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailed(ctx context.Context, limit int) (int, error)
	RequeueMilestone(ctx context.Context, milestoneID int64) error
	Close()
}

// Opener connects a Backend; it runs only when a command executes.
type Opener func(ctx context.Context) (Backend, error)

// jobAliases maps the command line names to scheduler job names.
var jobAliases = map[string]string{
	"milestones":    worker.JobCheckMilestones,
	"exceptions":    worker.JobCheckExceptions,
	"daily-summary": worker.JobDailySummary,
}

func jobNames() string {
	names := make([]string, 0, len(jobAliases))
	for k := range jobAliases {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// NewRootCommand creates the portalctl root command.
func NewRootCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operate the shipment portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newCreateAdminCommand(open))
	cmd.AddCommand(newRunJobCommand(open))
	cmd.AddCommand(newOutboxCommand(open))
	cmd.AddCommand(newNotificationsCommand(open))
	return cmd
}

// withBackend opens the backend for the duration of fn.
func withBackend(cmd *cobra.Command, open Opener, fn func(ctx context.Context, b Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := open(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer b.Close()
	return fn(ctx, b)
}

func newCreateAdminCommand(open Opener) *cobra.Command {
	var email, password, fullName, team string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an ADMIN user",
		Long: `Create an ADMIN user. Registration through the API is admin-only,
so the first administrator is bootstrapped here.

Examples:
  portalctl create-admin --email ops@seair.com --password '...' --full-name "Ops Admin"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				id, err := b.CreateAdmin(ctx, email, password, fullName, team)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (user_id %d)\n", email, id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&password, "password", "", "initial password (required)")
	cmd.Flags().StringVar(&fullName, "full-name", "", "display name (required)")
	cmd.Flags().StringVar(&team, "team", "", "team name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("full-name")
	return cmd
}

func newRunJobCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:       "run-job " + jobNames(),
		Short:     "Run one notifier job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"milestones", "exceptions", "daily-summary"},
		RunE: func(cmd *cobra.Command, args []string) error {
			job, ok := jobAliases[args[0]]
			if !ok {
				return fmt.Errorf("unknown job %q: must be one of %s", args[0], jobNames())
			}
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				if err := b.RunJob(ctx, job); err != nil {
					return fmt.Errorf("%s: %w", job, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s finished\n", job)
				return nil
			})
		},
	}
}

func newOutboxCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Replay outbox events to the broker",
	}

	var eventID int64
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Republish one event regardless of its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				if err := b.ReplayEvent(ctx, eventID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replayed event %d\n", eventID)
				return nil
			})
		},
	}
	replay.Flags().Int64Var(&eventID, "id", 0, "outbox event id (required)")
	_ = replay.MarkFlagRequired("id")

	var limit int
	replayFailed := &cobra.Command{
		Use:   "replay-failed",
		Short: "Republish failed events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				n, err := b.ReplayFailed(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replayed %d failed events\n", n)
				return nil
			})
		},
	}
	replayFailed.Flags().IntVar(&limit, "limit", 100, "maximum events to replay")

	cmd.AddCommand(replay, replayFailed)
	return cmd
}

func newNotificationsCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Manage milestone notification delivery",
	}

	var milestoneID int64
	requeue := &cobra.Command{
		Use:   "requeue",
		Short: "Retry a dead-lettered milestone notification on the next poll",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				if err := b.RequeueMilestone(ctx, milestoneID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued milestone %d\n", milestoneID)
				return nil
			})
		},
	}
	requeue.Flags().Int64Var(&milestoneID, "milestone-id", 0, "milestone id (required)")
	_ = requeue.MarkFlagRequired("milestone-id")

	cmd.AddCommand(requeue)
	return cmd
}
