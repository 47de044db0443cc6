package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchsync/searchsync"
	"github.com/searchsync/searchsync/internal/log"
	"github.com/spf13/cobra"
)

func reindexCmd() *cobra.Command {
	var (
		envFile string
		wait    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reindex <project>",
		Short: "Queue a full reindex of a project's content tables",
		Long: `Walk every allow-listed content table of a project and queue each record
for delivery, then drain the queue to the configured remote. Unchanged
records are acknowledged as skipped downstream, so a reindex can be
re-run safely at any time.

The command exits non-zero when any table walk failed or any queued
event was dead-lettered instead of delivered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(envFile, args[0], wait)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().DurationVar(&wait, "drain-timeout", 10*time.Minute, "How long to wait for queued events to be delivered")

	return cmd
}

func runReindex(envFile, projectID string, wait time.Duration) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	slogger := log.NewLogger(cfg).Slog()

	client, err := searchsync.New(
		searchsync.WithConfig(cfg),
		searchsync.WithLogger(slogger),
	)
	if err != nil {
		return fmt.Errorf("create searchsync client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close searchsync client", slog.Any("error", err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client.StartDispatcher()

	var parkedBefore int64
	if client.Dispatcher != nil {
		parkedBefore = client.Dispatcher.DeadLettered()
	}

	report, reindexErr := client.Reindex.Reindex(ctx, projectID)
	fmt.Fprintf(os.Stdout, "reindex %s: tables=%d records=%d queued=%d failed=%d\n",
		projectID, report.Tables, report.Records, report.Queued, report.Failed)

	if err := drainQueue(ctx, client, wait); err != nil {
		return err
	}

	if reindexErr != nil {
		return fmt.Errorf("reindex %s: %w", projectID, reindexErr)
	}
	if report.Failed > 0 {
		return fmt.Errorf("reindex %s: %d of %d tables failed", projectID, report.Failed, report.Tables)
	}
	// The queue draining cleanly is not enough: events that exhausted their
	// delivery attempts left the queue by being dead-lettered.
	if client.Dispatcher != nil {
		if parked := client.Dispatcher.DeadLettered() - parkedBefore; parked > 0 {
			return fmt.Errorf("reindex %s: %d events dead-lettered during delivery", projectID, parked)
		}
	}
	return nil
}

// drainQueue waits until every queued event has been picked up for
// delivery, or the timeout passes. Without a configured remote there is
// no dispatcher and nothing to wait for.
func drainQueue(ctx context.Context, client *searchsync.Client, wait time.Duration) error {
	if client.Dispatcher == nil {
		return nil
	}
	deadline := time.Now().Add(wait)
	for client.Queue.Len() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("queue not drained after %s: %d events still pending", wait, client.Queue.Len())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}
