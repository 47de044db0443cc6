package searchsync

import (
	"log/slog"

	"github.com/searchsync/searchsync/application/service"
	"github.com/searchsync/searchsync/infrastructure/provider"
	"github.com/searchsync/searchsync/internal/config"
)

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	app           config.AppConfig
	logger        *slog.Logger
	embedder      provider.Embedder
	contentSource service.ContentSource
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		app: config.NewAppConfig(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig replaces the whole application configuration, typically one
// assembled by config.LoadConfig.
func WithConfig(app config.AppConfig) Option {
	return func(c *clientConfig) {
		c.app = app
	}
}

// WithSQLite stores documents in a SQLite file. Vector search runs in
// memory; lexical search is unaffected.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.app = applyAppOption(c.app, config.WithDBURL("sqlite:///"+path))
	}
}

// WithPostgres stores documents in PostgreSQL. When the pgvector extension
// is available, vector search runs natively.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.app = applyAppOption(c.app, config.WithDBURL(dsn))
	}
}

// WithLogger sets the logger. Defaults to one built from the configured
// log level and format.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithEmbedder sets a custom embedding provider. Overrides the
// OpenAI-compatible provider built from configuration.
func WithEmbedder(e provider.Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithOpenAIEmbedding configures the OpenAI-compatible embedding endpoint.
func WithOpenAIEmbedding(endpoint config.Endpoint) Option {
	return func(c *clientConfig) {
		c.app = applyAppOption(c.app, config.WithEmbeddingEndpoint(endpoint))
	}
}

// WithRemote configures the remote indexing endpoint the dispatcher
// delivers to. Without it the CMS-side pipeline is disabled.
func WithRemote(remote config.RemoteConfig) Option {
	return func(c *clientConfig) {
		c.app = applyAppOption(c.app, config.WithRemoteConfig(remote))
	}
}

// WithSources sets the per-project source table allow-list.
func WithSources(sources config.Sources) Option {
	return func(c *clientConfig) {
		c.app = applyAppOption(c.app, config.WithSources(sources))
	}
}

// WithQueue tunes the debounce buffer.
func WithQueue(queue config.QueueConfig) Option {
	return func(c *clientConfig) {
		c.app = applyAppOption(c.app, config.WithQueueConfig(queue))
	}
}

// WithContentSource sets the CMS reader the reindex command walks.
func WithContentSource(source service.ContentSource) Option {
	return func(c *clientConfig) {
		c.contentSource = source
	}
}

func applyAppOption(app config.AppConfig, opt config.AppConfigOption) config.AppConfig {
	opt(&app)
	return app
}
