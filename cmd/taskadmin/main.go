// Package main provides the taskadmin operator CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lllypuk/taskflow/internal/config"
	"github.com/lllypuk/taskflow/internal/domain/principal"
)

var version = "dev"

// cli carries the state shared by all subcommands.
type cli struct {
	open       openFunc
	configPath string
	operator   string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openMongoBackend).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1) //nolint:gocritic // stop() called before exit
	}
}

func newRootCmd(open openFunc) *cobra.Command {
	c := &cli{open: open}

	rootCmd := &cobra.Command{
		Use:           "taskadmin",
		Short:         "Operator commands for the taskflow task store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to config.yaml (default: standard locations)")
	rootCmd.PersistentFlags().StringVar(&c.operator, "as", "taskadmin", "Username recorded as the actor of admin operations")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(c.listCmd())
	rootCmd.AddCommand(c.purgeCmd())
	rootCmd.AddCommand(c.rebuildCmd())
	rootCmd.AddCommand(c.deadLettersCmd())

	return rootCmd
}

// principal is the administrative identity commands act as.
func (c *cli) principal() principal.Principal {
	return principal.New(c.operator, nil, true)
}

func (c *cli) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withBackend loads the configuration, opens the backend and runs fn against it.
func (c *cli) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	cfg, err := config.LoadFromPath(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	logger := c.logger(cmd.ErrOrStderr())

	b, err := c.open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := b.Close(); closeErr != nil {
			logger.Error("failed to close backend", slog.String("error", closeErr.Error()))
		}
	}()

	return fn(ctx, b)
}
