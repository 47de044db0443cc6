package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for all environment variables.
const EnvPrefix = "SSYNC"

// EnvConfig holds all environment-based configuration.
// Field names map to environment variables with the SSYNC_ prefix; nested
// structs use an underscore delimiter (e.g. SSYNC_REMOTE_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: SSYNC_HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: SSYNC_PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DBURL is the database connection URL
	// (sqlite:///path.db or postgres://...).
	// Env: SSYNC_DB_URL
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: SSYNC_LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: SSYNC_LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// DefaultLanguage is assumed for records without a language.
	// Env: SSYNC_DEFAULT_LANGUAGE (default: en)
	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE" default:"en"`

	// SearchLimit is the default search result limit.
	// Env: SSYNC_SEARCH_LIMIT (default: 10)
	SearchLimit int `envconfig:"SEARCH_LIMIT" default:"10"`

	// SigningMaxSkewSeconds bounds the replay window for signed requests.
	// Env: SSYNC_SIGNING_MAX_SKEW (default: 300)
	SigningMaxSkewSeconds float64 `envconfig:"SIGNING_MAX_SKEW" default:"300"`

	// ReindexConcurrency caps parallel chunk deliveries during reindex.
	// Env: SSYNC_REINDEX_CONCURRENCY (default: 4)
	ReindexConcurrency int `envconfig:"REINDEX_CONCURRENCY" default:"4"`

	// SourcesFile points at the YAML per-project table allow-list.
	// Env: SSYNC_SOURCES_FILE
	SourcesFile string `envconfig:"SOURCES_FILE"`

	// Embedding configures the embedding provider endpoint.
	Embedding EmbeddingEnv `envconfig:"EMBEDDING"`

	// Remote configures the indexing API target for the dispatcher.
	Remote RemoteEnv `envconfig:"REMOTE"`

	// Queue configures the debounce buffer.
	Queue QueueEnv `envconfig:"QUEUE"`
}

// EmbeddingEnv holds environment configuration for the embedding endpoint.
type EmbeddingEnv struct {
	// BaseURL is the OpenAI-compatible API base URL.
	// Env: SSYNC_EMBEDDING_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the embedding model identifier.
	// Env: SSYNC_EMBEDDING_MODEL (default: text-embedding-3-small)
	Model string `envconfig:"MODEL" default:"text-embedding-3-small"`

	// APIKey authenticates against the embedding provider.
	// Env: SSYNC_EMBEDDING_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	// Env: SSYNC_EMBEDDING_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the retry ceiling for provider calls.
	// Env: SSYNC_EMBEDDING_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// Dimension is the embedding dimensionality.
	// Env: SSYNC_EMBEDDING_DIMENSION (default: 1536)
	Dimension int `envconfig:"DIMENSION" default:"1536"`
}

// RemoteEnv holds environment configuration for the indexing API target.
type RemoteEnv struct {
	// BaseURL is the indexing API base URL.
	// Env: SSYNC_REMOTE_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// KeyID is the API key identifier sent with each request.
	// Env: SSYNC_REMOTE_KEY_ID
	KeyID string `envconfig:"KEY_ID"`

	// Secret is the shared HMAC secret.
	// Env: SSYNC_REMOTE_SECRET
	Secret string `envconfig:"SECRET"`

	// Timeout is the per-call timeout in seconds.
	// Env: SSYNC_REMOTE_TIMEOUT (default: 30)
	Timeout float64 `envconfig:"TIMEOUT" default:"30"`

	// MaxRetries is the delivery attempt ceiling.
	// Env: SSYNC_REMOTE_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the first backoff delay in seconds.
	// Env: SSYNC_REMOTE_INITIAL_DELAY (default: 0.5)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"0.5"`

	// BackoffFactor is the backoff multiplier.
	// Env: SSYNC_REMOTE_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// BatchSize is the maximum records per delivery call.
	// Env: SSYNC_REMOTE_BATCH_SIZE (default: 50)
	BatchSize int `envconfig:"BATCH_SIZE" default:"50"`
}

// QueueEnv holds environment configuration for the debounce buffer.
type QueueEnv struct {
	// DebounceDelay is how long a key stays buffered, in seconds.
	// Env: SSYNC_QUEUE_DEBOUNCE_DELAY (default: 2)
	DebounceDelay float64 `envconfig:"DEBOUNCE_DELAY" default:"2"`

	// DrainTick is the drain check interval in seconds.
	// Env: SSYNC_QUEUE_DRAIN_TICK (default: 0.5)
	DrainTick float64 `envconfig:"DRAIN_TICK" default:"0.5"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.DefaultLanguage != "" {
		cfg = applyOption(cfg, WithDefaultLanguage(e.DefaultLanguage))
	}
	if e.SearchLimit > 0 {
		cfg = applyOption(cfg, WithSearchLimit(e.SearchLimit))
	}
	if e.SigningMaxSkewSeconds > 0 {
		cfg = applyOption(cfg, WithSigningMaxSkew(seconds(e.SigningMaxSkewSeconds)))
	}
	if e.ReindexConcurrency > 0 {
		cfg = applyOption(cfg, WithReindexConcurrency(e.ReindexConcurrency))
	}

	cfg = applyOption(cfg, WithEmbeddingEndpoint(e.Embedding.ToEndpoint()))
	cfg = applyOption(cfg, WithRemoteConfig(e.Remote.ToRemoteConfig()))
	cfg = applyOption(cfg, WithQueueConfig(e.Queue.ToQueueConfig()))

	return cfg
}

// ToEndpoint converts EmbeddingEnv to Endpoint.
func (e EmbeddingEnv) ToEndpoint() Endpoint {
	ep := NewEndpoint().
		WithModel(e.Model).
		WithTimeout(seconds(e.Timeout)).
		WithMaxRetries(e.MaxRetries).
		WithDimension(e.Dimension)
	if e.BaseURL != "" {
		ep = ep.WithBaseURL(e.BaseURL)
	}
	if e.APIKey != "" {
		ep = ep.WithAPIKey(e.APIKey)
	}
	return ep
}

// ToRemoteConfig converts RemoteEnv to RemoteConfig.
func (r RemoteEnv) ToRemoteConfig() RemoteConfig {
	rc := NewRemoteConfig().
		WithTimeout(seconds(r.Timeout)).
		WithMaxRetries(r.MaxRetries).
		WithInitialDelay(seconds(r.InitialDelay)).
		WithBackoffFactor(r.BackoffFactor).
		WithBatchSize(r.BatchSize)
	if r.BaseURL != "" {
		rc = rc.WithBaseURL(r.BaseURL)
	}
	if r.KeyID != "" {
		rc = rc.WithKeyID(r.KeyID)
	}
	if r.Secret != "" {
		rc = rc.WithSecret(r.Secret)
	}
	return rc
}

// ToQueueConfig converts QueueEnv to QueueConfig.
func (q QueueEnv) ToQueueConfig() QueueConfig {
	return NewQueueConfig().
		WithDebounceDelay(seconds(q.DebounceDelay)).
		WithDrainTick(seconds(q.DrainTick))
}

func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
