package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/searchsync/searchsync"
	"github.com/searchsync/searchsync/infrastructure/api"
	v1 "github.com/searchsync/searchsync/infrastructure/api/v1"
	"github.com/searchsync/searchsync/internal/config"
	"github.com/searchsync/searchsync/internal/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		envFile     string
		host        string
		port        int
		dbURL       string
		sourcesFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and delivery loop",
		Long: `Start the HTTP API server and the background delivery loop.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables (prefix SSYNC_):
  SSYNC_HOST                   Server host to bind to (default: 0.0.0.0)
  SSYNC_PORT                   Server port to listen on (default: 8080)
  SSYNC_DB_URL                 Database URL (sqlite:///path or postgres://...)
  SSYNC_LOG_LEVEL              Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  SSYNC_LOG_FORMAT             Log format: pretty, json (default: pretty)
  SSYNC_SOURCES_FILE           Path to the per-project source table allow-list
  SSYNC_DEFAULT_LANGUAGE       Fallback language for untagged content
  SSYNC_SEARCH_LIMIT           Default search result limit
  SSYNC_SIGNING_MAX_SKEW       Replay window for signed requests, in seconds

  SSYNC_EMBEDDING_*            Embedding AI service configuration
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier (e.g., text-embedding-3-small)
    API_KEY                    API key for authentication
    DIMENSION                  Vector dimension stored per document
    TIMEOUT                    Request timeout in seconds
    MAX_RETRIES                Retry attempts

  SSYNC_REMOTE_*               Downstream indexing API (outbound deliveries)
    BASE_URL                   Ingestion endpoint base URL
    KEY_ID                     API key identifier used to sign batches
    SECRET                     Shared secret used to sign batches
    BATCH_SIZE                 Events per delivery batch
    MAX_RETRIES                Delivery retry attempts
    INITIAL_DELAY              First backoff delay in seconds
    BACKOFF_FACTOR             Backoff multiplier between attempts

  SSYNC_QUEUE_*                Debounce buffer
    DEBOUNCE_DELAY             Seconds to hold a dirty document before delivery
    DRAIN_TICK                 Seconds between queue drain passes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port, dbURL, sourcesFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "Database URL (sqlite:///path or postgres://...)")
	cmd.Flags().StringVar(&sourcesFile, "sources", "", "Path to the source table allow-list file")

	return cmd
}

func runServe(envFile, host string, port int, dbURL, sourcesFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg, err = applyServeOverrides(cfg, host, port, dbURL, sourcesFile)
	if err != nil {
		return err
	}
	if cfg.DBURL() == "" {
		cfg = applyConfigOption(cfg, config.WithDBURL("sqlite:///searchsync.db"))
	}

	addr := cfg.Addr()
	slogger := log.NewLogger(cfg).Slog()

	attrs := []slog.Attr{
		slog.String("version", version),
		slog.String("addr", addr),
		slog.String("log_level", cfg.LogLevel()),
	}
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting searchsync", attrs...)

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

	client.StartDispatcher()

	server := api.NewServer(addr, slogger)
	router := server.Router()

	router.Get("/healthz", api.HealthHandler(client.Database(), client.VectorEnabled(), slogger))
	router.Method(http.MethodGet, "/metrics", client.Metrics.Handler())
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"name":"searchsync","version":"%s"}`, version)
	})

	ingestRouter := v1.NewIngestRouter(client.Ingest, client.Keys, cfg.SigningMaxSkew(), client.Metrics, slogger)
	router.Mount("/api/v1/index", ingestRouter.Routes())
	router.Mount("/api/v1/search", v1.NewSearchRouter(client.Search, slogger).Routes())
	router.Mount("/api/v1/deadletters", v1.NewDeadLetterRouter(client.DeadLetters, client.Keys, cfg.SigningMaxSkew(), client.Metrics, slogger).Routes())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slogger.Info("shutting down server")
		if err := server.Shutdown(context.Background()); err != nil {
			slogger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	slogger.Info("starting server", slog.String("addr", addr))
	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int, dbURL, sourcesFile string) (config.AppConfig, error) {
	if host != "" {
		cfg = applyConfigOption(cfg, config.WithHost(host))
	}
	if port != 0 {
		cfg = applyConfigOption(cfg, config.WithPort(port))
	}
	if dbURL != "" {
		cfg = applyConfigOption(cfg, config.WithDBURL(dbURL))
	}
	if sourcesFile != "" {
		sources, err := config.LoadSources(sourcesFile)
		if err != nil {
			return config.AppConfig{}, err
		}
		cfg = applyConfigOption(cfg, config.WithSources(sources))
	}
	return cfg, nil
}

func applyConfigOption(cfg config.AppConfig, opt config.AppConfigOption) config.AppConfig {
	opt(&cfg)
	return cfg
}
