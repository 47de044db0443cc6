package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage per-project API keys for the ingestion endpoint",
	}

	cmd.AddCommand(keysCreateCmd())
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysRevokeCmd())

	return cmd
}

func keysCreateCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "create <project>",
		Short: "Create an API key for a project",
		Long: `Create an API key for a project. The secret is printed once and never
stored in clear; configure it as SSYNC_REMOTE_SECRET on the CMS side.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysCreate(envFile, args[0])
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runKeysCreate(envFile, projectID string) error {
	client, slogger, err := newCLIClient(envFile)
	if err != nil {
		return err
	}
	defer closeCLIClient(client, slogger)

	key, secret, err := client.CreateAPIKey(context.Background(), projectID)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Printf("key id:  %s\n", key.KeyID())
	fmt.Printf("project: %s\n", key.ProjectID())
	fmt.Printf("secret:  %s\n", secret)
	return nil
}

func keysListCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List a project's API keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysList(envFile, args[0])
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runKeysList(envFile, projectID string) error {
	client, slogger, err := newCLIClient(envFile)
	if err != nil {
		return err
	}
	defer closeCLIClient(client, slogger)

	keys, err := client.Keys.ListByProject(context.Background(), projectID)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("no api keys")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY ID\tCREATED\tREVOKED")
	for _, key := range keys {
		revoked := "-"
		if at := key.RevokedAt(); at != nil {
			revoked = at.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", key.KeyID(), key.CreatedAt().Format(time.RFC3339), revoked)
	}
	return w.Flush()
}

func keysRevokeCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysRevoke(envFile, args[0])
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runKeysRevoke(envFile, keyID string) error {
	client, slogger, err := newCLIClient(envFile)
	if err != nil {
		return err
	}
	defer closeCLIClient(client, slogger)

	if err := client.RevokeAPIKey(context.Background(), keyID); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	fmt.Printf("revoked %s\n", keyID)
	return nil
}
