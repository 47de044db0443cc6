// Package config provides application configuration.
package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 8080
	DefaultLogLevel            = "INFO"
	DefaultLanguage            = "en"
	DefaultSearchLimit         = 10
	DefaultBatchSize           = 50
	DefaultDebounceDelay       = 2 * time.Second
	DefaultDrainTick           = 500 * time.Millisecond
	DefaultRemoteTimeout       = 30 * time.Second
	DefaultRemoteMaxRetries    = 5
	DefaultRemoteInitialDelay  = 500 * time.Millisecond
	DefaultRemoteBackoffFactor = 2.0
	DefaultSigningMaxSkew      = 5 * time.Minute
	DefaultReindexConcurrency  = 4
	DefaultEmbeddingTimeout    = 60 * time.Second
	DefaultEmbeddingMaxRetries = 5
	DefaultEmbeddingDimension  = 1536
	DefaultEmbeddingModel      = "text-embedding-3-small"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures the embedding provider endpoint.
type Endpoint struct {
	baseURL    string
	model      string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	dimension  int
}

// NewEndpoint creates an Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		model:      DefaultEmbeddingModel,
		timeout:    DefaultEmbeddingTimeout,
		maxRetries: DefaultEmbeddingMaxRetries,
		dimension:  DefaultEmbeddingDimension,
	}
}

// BaseURL returns the endpoint base URL.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the embedding model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the endpoint API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// Dimension returns the embedding dimensionality. Fixed per deployment;
// the storage layer enforces it.
func (e Endpoint) Dimension() int { return e.dimension }

// IsConfigured returns true if an API key is set.
func (e Endpoint) IsConfigured() bool { return e.apiKey != "" }

// WithBaseURL returns a copy with the base URL set.
func (e Endpoint) WithBaseURL(u string) Endpoint { e.baseURL = u; return e }

// WithModel returns a copy with the model set.
func (e Endpoint) WithModel(m string) Endpoint {
	if m != "" {
		e.model = m
	}
	return e
}

// WithAPIKey returns a copy with the API key set.
func (e Endpoint) WithAPIKey(k string) Endpoint { e.apiKey = k; return e }

// WithTimeout returns a copy with the timeout set.
func (e Endpoint) WithTimeout(d time.Duration) Endpoint {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// WithMaxRetries returns a copy with the retry ceiling set.
func (e Endpoint) WithMaxRetries(n int) Endpoint {
	if n > 0 {
		e.maxRetries = n
	}
	return e
}

// WithDimension returns a copy with the embedding dimension set.
func (e Endpoint) WithDimension(d int) Endpoint {
	if d > 0 {
		e.dimension = d
	}
	return e
}

// RemoteConfig configures the CMS-side dispatcher's connection to the
// indexing API: where to deliver, how to authenticate, and how hard to retry.
type RemoteConfig struct {
	baseURL       string
	keyID         string
	secret        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
	batchSize     int
}

// NewRemoteConfig creates a RemoteConfig with defaults.
func NewRemoteConfig() RemoteConfig {
	return RemoteConfig{
		timeout:       DefaultRemoteTimeout,
		maxRetries:    DefaultRemoteMaxRetries,
		initialDelay:  DefaultRemoteInitialDelay,
		backoffFactor: DefaultRemoteBackoffFactor,
		batchSize:     DefaultBatchSize,
	}
}

// BaseURL returns the indexing API base URL.
func (r RemoteConfig) BaseURL() string { return r.baseURL }

// KeyID returns the API key identifier sent with each request.
func (r RemoteConfig) KeyID() string { return r.keyID }

// Secret returns the shared HMAC secret.
func (r RemoteConfig) Secret() string { return r.secret }

// Timeout returns the per-call timeout.
func (r RemoteConfig) Timeout() time.Duration { return r.timeout }

// MaxRetries returns the delivery attempt ceiling.
func (r RemoteConfig) MaxRetries() int { return r.maxRetries }

// InitialDelay returns the first backoff delay.
func (r RemoteConfig) InitialDelay() time.Duration { return r.initialDelay }

// BackoffFactor returns the backoff multiplier.
func (r RemoteConfig) BackoffFactor() float64 { return r.backoffFactor }

// BatchSize returns the maximum records per delivery call.
func (r RemoteConfig) BatchSize() int { return r.batchSize }

// IsConfigured returns true if a base URL is set.
func (r RemoteConfig) IsConfigured() bool { return r.baseURL != "" }

// WithBaseURL returns a copy with the base URL set.
func (r RemoteConfig) WithBaseURL(u string) RemoteConfig { r.baseURL = u; return r }

// WithKeyID returns a copy with the key identifier set.
func (r RemoteConfig) WithKeyID(id string) RemoteConfig { r.keyID = id; return r }

// WithSecret returns a copy with the shared secret set.
func (r RemoteConfig) WithSecret(s string) RemoteConfig { r.secret = s; return r }

// WithTimeout returns a copy with the per-call timeout set.
func (r RemoteConfig) WithTimeout(d time.Duration) RemoteConfig {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// WithMaxRetries returns a copy with the attempt ceiling set.
func (r RemoteConfig) WithMaxRetries(n int) RemoteConfig {
	if n > 0 {
		r.maxRetries = n
	}
	return r
}

// WithInitialDelay returns a copy with the first backoff delay set.
func (r RemoteConfig) WithInitialDelay(d time.Duration) RemoteConfig {
	if d > 0 {
		r.initialDelay = d
	}
	return r
}

// WithBackoffFactor returns a copy with the backoff multiplier set.
func (r RemoteConfig) WithBackoffFactor(f float64) RemoteConfig {
	if f > 1 {
		r.backoffFactor = f
	}
	return r
}

// WithBatchSize returns a copy with the chunk size set.
func (r RemoteConfig) WithBatchSize(n int) RemoteConfig {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// QueueConfig configures the debounce buffer.
type QueueConfig struct {
	debounceDelay time.Duration
	drainTick     time.Duration
}

// NewQueueConfig creates a QueueConfig with defaults.
func NewQueueConfig() QueueConfig {
	return QueueConfig{
		debounceDelay: DefaultDebounceDelay,
		drainTick:     DefaultDrainTick,
	}
}

// DebounceDelay returns how long a key stays buffered before dispatch.
func (q QueueConfig) DebounceDelay() time.Duration { return q.debounceDelay }

// DrainTick returns the interval between drain checks.
func (q QueueConfig) DrainTick() time.Duration { return q.drainTick }

// WithDebounceDelay returns a copy with the debounce delay set.
func (q QueueConfig) WithDebounceDelay(d time.Duration) QueueConfig {
	if d > 0 {
		q.debounceDelay = d
	}
	return q
}

// WithDrainTick returns a copy with the drain tick set.
func (q QueueConfig) WithDrainTick(d time.Duration) QueueConfig {
	if d > 0 {
		q.drainTick = d
	}
	return q
}

// AppConfig holds the assembled application configuration.
type AppConfig struct {
	host               string
	port               int
	dbURL              string
	logLevel           string
	logFormat          LogFormat
	defaultLanguage    string
	searchLimit        int
	signingMaxSkew     time.Duration
	reindexConcurrency int
	embedding          Endpoint
	remote             RemoteConfig
	queue              QueueConfig
	sources            Sources
}

// NewAppConfig creates an AppConfig with defaults.
func NewAppConfig() AppConfig {
	return AppConfig{
		host:               DefaultHost,
		port:               DefaultPort,
		logLevel:           DefaultLogLevel,
		logFormat:          LogFormatPretty,
		defaultLanguage:    DefaultLanguage,
		searchLimit:        DefaultSearchLimit,
		signingMaxSkew:     DefaultSigningMaxSkew,
		reindexConcurrency: DefaultReindexConcurrency,
		embedding:          NewEndpoint(),
		remote:             NewRemoteConfig(),
		queue:              NewQueueConfig(),
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// DefaultLanguage returns the language assumed for records without one.
func (c AppConfig) DefaultLanguage() string { return c.defaultLanguage }

// SearchLimit returns the default search result limit.
func (c AppConfig) SearchLimit() int { return c.searchLimit }

// SigningMaxSkew returns the allowed clock drift for signed requests.
func (c AppConfig) SigningMaxSkew() time.Duration { return c.signingMaxSkew }

// ReindexConcurrency returns the bounded parallelism for reindex runs.
func (c AppConfig) ReindexConcurrency() int { return c.reindexConcurrency }

// Embedding returns the embedding endpoint config.
func (c AppConfig) Embedding() Endpoint { return c.embedding }

// Remote returns the indexing API target config.
func (c AppConfig) Remote() RemoteConfig { return c.remote }

// Queue returns the debounce buffer config.
func (c AppConfig) Queue() QueueConfig { return c.queue }

// Sources returns the per-project source-table allow-list.
func (c AppConfig) Sources() Sources { return c.sources }

// Validate reports configuration problems. Missing optional settings come
// back as warnings for the caller to log; only malformed values error.
func (c AppConfig) Validate() (warnings []string, err error) {
	if c.port <= 0 || c.port > 65535 {
		return nil, fmt.Errorf("invalid port %d", c.port)
	}
	if !c.embedding.IsConfigured() {
		warnings = append(warnings, "no embedding endpoint configured; documents are stored without vectors and search degrades to lexical-only")
	}
	if c.remote.IsConfigured() {
		if c.remote.KeyID() == "" {
			warnings = append(warnings, "remote base URL set but no key id; deliveries will be rejected")
		}
		if c.remote.Secret() == "" {
			warnings = append(warnings, "remote base URL set but no shared secret; deliveries will be rejected")
		}
	}
	if c.sources.IsEmpty() {
		warnings = append(warnings, "no source tables configured; the change detection hook will ignore all mutations")
	}
	return warnings, nil
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithDefaultLanguage sets the fallback language.
func WithDefaultLanguage(lang string) AppConfigOption {
	return func(c *AppConfig) { c.defaultLanguage = lang }
}

// WithSearchLimit sets the default search result limit.
func WithSearchLimit(limit int) AppConfigOption {
	return func(c *AppConfig) { c.searchLimit = limit }
}

// WithSigningMaxSkew sets the replay window for signed requests.
func WithSigningMaxSkew(d time.Duration) AppConfigOption {
	return func(c *AppConfig) { c.signingMaxSkew = d }
}

// WithReindexConcurrency sets the reindex worker ceiling.
func WithReindexConcurrency(n int) AppConfigOption {
	return func(c *AppConfig) { c.reindexConcurrency = n }
}

// WithEmbeddingEndpoint sets the embedding endpoint config.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embedding = e }
}

// WithRemoteConfig sets the indexing API target config.
func WithRemoteConfig(r RemoteConfig) AppConfigOption {
	return func(c *AppConfig) { c.remote = r }
}

// WithQueueConfig sets the debounce buffer config.
func WithQueueConfig(q QueueConfig) AppConfigOption {
	return func(c *AppConfig) { c.queue = q }
}

// WithSources sets the per-project source allow-list.
func WithSources(s Sources) AppConfigOption {
	return func(c *AppConfig) { c.sources = s }
}
