package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

const defaultPurgeReason = "purged by taskadmin"

var errNoDeadLetters = errors.New("dead letters need eventbus.type=redis with eventbus.dead_letter enabled")

func (c *cli) listCmd() *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks of every status, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				page, err := b.Admin.Tasks(ctx, c.principal(), taskapp.PageOf(offset, limit))
				if err != nil {
					return fmt.Errorf("failed to list tasks: %w", err)
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTasks(page.Content))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Number of tasks to skip")
	cmd.Flags().IntVarP(&limit, "limit", "n", taskapp.DefaultPageLimit, "Maximum tasks to show")

	return cmd
}

func (c *cli) purgeCmd() *cobra.Command {
	var (
		reason  string
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Mark every active task DELETED",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("refusing to purge without --yes")
			}

			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				result, err := b.Admin.DeleteAll(ctx, c.principal(), reason)
				if err != nil {
					return fmt.Errorf("failed to purge tasks: %w", err)
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderSummary("purge",
					summaryLine{"deleted", result.Deleted},
					summaryLine{"failed", result.Failed},
				))

				if result.Failed > 0 {
					return fmt.Errorf("%d tasks could not be deleted", result.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", defaultPurgeReason, "Delete reason stored on every task")
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm the purge")

	return cmd
}

func (c *cli) rebuildCmd() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "rebuild-readmodel",
		Short: "Rebuild task read models from the event store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var id uuid.UUID
			if taskID != "" {
				parsed, err := uuid.ParseUUID(taskID)
				if err != nil {
					return fmt.Errorf("invalid task id %q: %w", taskID, err)
				}
				id = parsed
			}

			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				if taskID != "" {
					if err := b.Projector.RebuildOne(ctx, id); err != nil {
						return fmt.Errorf("failed to rebuild task %s: %w", id, err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderSummary("rebuild-readmodel", summaryLine{"rebuilt", 1}))
					return nil
				}

				rebuilt, err := b.Projector.RebuildAll(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary("rebuild-readmodel", summaryLine{"rebuilt", rebuilt}))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "id", "", "Rebuild a single task (default: all tasks)")

	return cmd
}

func (c *cli) deadLettersCmd() *cobra.Command {
	var (
		limit int64
		clearAll bool
	)

	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "Show or clear events the Redis event bus gave up delivering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				if b.DeadLetters == nil {
					return errNoDeadLetters
				}

				if clearAll {
					n, err := b.DeadLetters.Len(ctx)
					if err != nil {
						return err
					}
					if err = b.DeadLetters.Clear(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderSummary("dead-letters", summaryLine{"cleared", int(n)}))
					return nil
				}

				total, err := b.DeadLetters.Len(ctx)
				if err != nil {
					return err
				}
				letters, err := b.DeadLetters.List(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderDeadLetters(total, letters))
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Drop every parked event")

	return cmd
}
