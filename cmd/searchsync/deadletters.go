package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/searchsync/searchsync"
	"github.com/searchsync/searchsync/internal/log"
	"github.com/spf13/cobra"
)

func deadLettersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "Inspect and replay dead-lettered change events",
	}

	cmd.AddCommand(deadLettersListCmd())
	cmd.AddCommand(deadLettersReplayCmd())

	return cmd
}

func deadLettersListCmd() *cobra.Command {
	var (
		envFile         string
		includeReplayed bool
		limit           int
	)

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List dead-lettered events for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeadLettersList(envFile, args[0], includeReplayed, limit)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().BoolVar(&includeReplayed, "include-replayed", false, "Also show events that were already replayed")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events to show")

	return cmd
}

func runDeadLettersList(envFile, projectID string, includeReplayed bool, limit int) error {
	client, slogger, err := newCLIClient(envFile)
	if err != nil {
		return err
	}
	defer closeCLIClient(client, slogger)

	letters, err := client.DeadLetters.List(context.Background(), projectID, includeReplayed, limit)
	if err != nil {
		return fmt.Errorf("list dead letters: %w", err)
	}
	if len(letters) == 0 {
		fmt.Println("no dead-lettered events")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKEY\tOP\tATTEMPTS\tFAILED AT\tREPLAYED\tLAST ERROR")
	for _, dl := range letters {
		ev := dl.Event()
		replayed := "-"
		if at := dl.ReplayedAt(); at != nil {
			replayed = at.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			dl.ID(), ev.Key(), ev.Operation(), ev.Attempts(),
			dl.FailedAt().Format(time.RFC3339), replayed, dl.LastError())
	}
	return w.Flush()
}

func deadLettersReplayCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "replay <project> <id>",
		Short: "Requeue a dead-lettered event for delivery",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid dead letter id %q", args[1])
			}
			return runDeadLettersReplay(envFile, args[0], id)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runDeadLettersReplay(envFile, projectID string, id int64) error {
	client, slogger, err := newCLIClient(envFile)
	if err != nil {
		return err
	}
	defer closeCLIClient(client, slogger)

	client.StartDispatcher()

	var parkedBefore int64
	if client.Dispatcher != nil {
		parkedBefore = client.Dispatcher.DeadLettered()
	}

	dl, err := client.DeadLetters.Replay(context.Background(), projectID, id)
	if err != nil {
		return fmt.Errorf("replay dead letter %d: %w", id, err)
	}
	fmt.Printf("requeued %s (dead letter %d)\n", dl.Event().Key(), dl.ID())

	// The queue lives in this process, so wait for the event to go out
	// before exiting.
	if err := drainQueue(context.Background(), client, 5*time.Minute); err != nil {
		return err
	}
	if client.Dispatcher != nil {
		if parked := client.Dispatcher.DeadLettered() - parkedBefore; parked > 0 {
			return fmt.Errorf("replay dead letter %d: delivery failed again, parked as a fresh dead letter", id)
		}
	}
	return nil
}

// newCLIClient builds a client for one-shot administrative commands.
func newCLIClient(envFile string) (*searchsync.Client, *slog.Logger, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, nil, err
	}
	slogger := log.NewLogger(cfg).Slog()

	client, err := searchsync.New(
		searchsync.WithConfig(cfg),
		searchsync.WithLogger(slogger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create searchsync client: %w", err)
	}
	return client, slogger, nil
}

func closeCLIClient(client *searchsync.Client, slogger *slog.Logger) {
	if err := client.Close(); err != nil {
		slogger.Error("failed to close searchsync client", slog.Any("error", err))
	}
}
