// Package main is the entry point for the searchsync CLI.
package main

import (
	"fmt"
	"os"

	"github.com/searchsync/searchsync/internal/config"
	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searchsync",
		Short: "CMS to search index synchronization pipeline",
		Long:  `Searchsync watches CMS content mutations, coalesces them into debounced change events, and keeps a remote search index in sync through signed, retried webhook deliveries. It also serves the signed ingestion endpoint and the hybrid search API on the index side.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(reindexCmd())
	cmd.AddCommand(deadLettersCmd())
	cmd.AddCommand(keysCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
