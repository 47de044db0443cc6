// Package searchsync synchronizes CMS content changes into a search index.
//
// The pipeline has two halves that can run in one process or two. On the
// CMS side, a change detection hook feeds a debounced queue and a
// dispatcher delivers signed event batches to the indexing API. On the
// index side, the ingestion endpoint verifies signatures and applies
// batches idempotently to a vector-capable document store queried by the
// hybrid search API.
//
// Basic usage:
//
//	client, err := searchsync.New(
//	    searchsync.WithSQLite("searchsync.db"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// CMS side: report a mutation
//	client.Hook.Notify(ctx, mutation)
//
//	// Index side: query
//	hits, err := client.Search.Search(ctx, query)
package searchsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/searchsync/searchsync/application/service"
	"github.com/searchsync/searchsync/domain/auth"
	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/infrastructure/cms"
	"github.com/searchsync/searchsync/infrastructure/metrics"
	"github.com/searchsync/searchsync/infrastructure/persistence"
	"github.com/searchsync/searchsync/infrastructure/provider"
	"github.com/searchsync/searchsync/infrastructure/webhook"
	"github.com/searchsync/searchsync/internal/config"
	"github.com/searchsync/searchsync/internal/database"
	"github.com/searchsync/searchsync/internal/log"
)

// ErrNoDatabase indicates no database was configured.
var ErrNoDatabase = errors.New("no database configured: use WithSQLite, WithPostgres or WithConfig")

// Client is the main entry point for the searchsync library.
//
// Access the pipeline via struct fields:
//
//	client.Hook.Notify(ctx, mutation)
//	client.Search.Search(ctx, query)
//	client.DeadLetters.Replay(ctx, projectID, id)
type Client struct {
	// CMS-side pipeline
	Hook       *cms.Hook
	Queue      *service.Queue
	Dispatcher *service.Dispatcher
	Reindex    *service.ReindexService

	// Index-side services
	Ingest      *service.IngestService
	Search      *service.SearchService
	DeadLetters *service.DeadLetterService

	// Stores reachable from the outside (API key provisioning, middleware)
	Keys *persistence.APIKeyStore

	Metrics *metrics.Metrics

	db            database.Database
	docs          *persistence.DocumentStore
	cfg           config.AppConfig
	embedder      provider.Embedder
	vectorEnabled bool
	logger        *slog.Logger

	dispatcherCancel context.CancelFunc
	dispatcherDone   chan struct{}
	closed           atomic.Bool
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	cc := newClientConfig()
	for _, opt := range opts {
		opt(cc)
	}
	cfg := cc.app

	if cfg.DBURL() == "" {
		return nil, ErrNoDatabase
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger := cc.logger
	if logger == nil {
		logger = log.NewLogger(cfg).Slog()
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.DBURL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	embedder := cc.embedder
	if embedder == nil {
		if cfg.Embedding().IsConfigured() {
			embedder = provider.NewOpenAIEmbedder(cfg.Embedding())
		} else {
			embedder = provider.NullEmbedder{}
		}
	}
	dimension := embedder.Dimension()

	vectorEnabled, err := persistence.EnsureVectorCapability(ctx, db, dimension, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("vector capability: %w", err), errClose)
	}

	m := metrics.New()

	docStore := persistence.NewDocumentStore(db, dimension, vectorEnabled, logger)
	keyStore := persistence.NewAPIKeyStore(db)
	deadLetterStore := persistence.NewDeadLetterStore(db)

	queue := service.NewQueue(cfg.Queue(), m, logger)
	hook := cms.NewHook(cfg.Sources(), queue, logger)

	// Replaying a dead letter without a dispatcher would park the event in
	// the in-memory queue forever, so the replay sink stays nil until a
	// remote endpoint is configured.
	var dispatcher *service.Dispatcher
	var replaySink service.EventSink
	if cfg.Remote().IsConfigured() {
		deliveryClient := webhook.NewClient(cfg.Remote(), logger)
		dispatcher = service.NewDispatcher(queue, deliveryClient, deadLetterStore, cfg.Remote(), cfg.Queue(), m, logger)
		replaySink = queue
	}

	contentSource := cc.contentSource
	if contentSource == nil {
		contentSource = cms.NewTableSource(db, cfg.DefaultLanguage(), logger)
	}
	reindex := service.NewReindexService(contentSource, queue, cfg.Sources(), cfg.ReindexConcurrency(), logger)

	c := &Client{
		Hook:        hook,
		Queue:       queue,
		Dispatcher:  dispatcher,
		Reindex:     reindex,
		Ingest:      service.NewIngestService(docStore, embedder, m, logger),
		Search:      service.NewSearchService(docStore, embedder, cfg.SearchLimit(), m, logger),
		DeadLetters: service.NewDeadLetterService(deadLetterStore, replaySink, logger),
		Keys:        keyStore,
		Metrics:     m,

		db:            db,
		docs:          docStore,
		cfg:           cfg,
		embedder:      embedder,
		vectorEnabled: vectorEnabled,
		logger:        logger,
	}
	return c, nil
}

// StartDispatcher runs the delivery loop in the background. It is a no-op
// when no remote endpoint is configured.
func (c *Client) StartDispatcher() {
	if c.Dispatcher == nil || c.dispatcherDone != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.dispatcherCancel = cancel
	c.dispatcherDone = make(chan struct{})
	go func() {
		defer close(c.dispatcherDone)
		if err := c.Dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("dispatcher stopped", slog.String("error", err.Error()))
		}
	}()
}

// CreateAPIKey provisions a key for a project and returns it along with
// the raw secret. The secret is shown once; only its digest is stored.
func (c *Client) CreateAPIKey(ctx context.Context, projectID string) (auth.APIKey, string, error) {
	if projectID == "" {
		return auth.APIKey{}, "", fmt.Errorf("%w: project is required", service.ErrValidation)
	}
	keyID := uuid.NewString()
	secret := uuid.NewString() + uuid.NewString()
	key := auth.NewAPIKey(keyID, projectID, secret)
	if err := c.Keys.Save(ctx, key); err != nil {
		return auth.APIKey{}, "", fmt.Errorf("save api key: %w", err)
	}
	c.logger.Info("api key created",
		slog.String("key_id", keyID),
		slog.String("project_id", projectID),
	)
	return key, secret, nil
}

// RevokeAPIKey deactivates a key. Requests signed with it fail afterwards.
func (c *Client) RevokeAPIKey(ctx context.Context, keyID string) error {
	key, err := c.Keys.FindByKeyID(ctx, keyID)
	if err != nil {
		if errors.Is(err, persistence.ErrAPIKeyNotFound) {
			return fmt.Errorf("%w: api key %s", service.ErrNotFound, keyID)
		}
		return err
	}
	if err := c.Keys.Save(ctx, key.Revoke(time.Now().UTC())); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	c.logger.Info("api key revoked", slog.String("key_id", keyID))
	return nil
}

// Document looks up one indexed document by its composite key.
func (c *Client) Document(ctx context.Context, projectID, sourceTable, recordID, language string) (document.Document, bool, error) {
	return c.docs.Get(ctx, projectID, sourceTable, recordID, language)
}

// Database returns the underlying database handle.
func (c *Client) Database() database.Database {
	return c.db
}

// Config returns the effective configuration.
func (c *Client) Config() config.AppConfig {
	return c.cfg
}

// VectorEnabled reports whether native vector search is available.
func (c *Client) VectorEnabled() bool {
	return c.vectorEnabled
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Close stops accepting events, flushes pending deliveries and closes the
// database. Safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.Queue.Close()
	if c.dispatcherCancel != nil {
		c.dispatcherCancel()
		<-c.dispatcherDone
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	c.logger.Info("searchsync client closed")
	return nil
}
