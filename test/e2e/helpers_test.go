package e2e_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/searchsync/searchsync"
	"github.com/searchsync/searchsync/domain/auth"
	v1 "github.com/searchsync/searchsync/infrastructure/api/v1"
	"github.com/searchsync/searchsync/internal/config"
)

// IndexServer is the search-service side of the pipeline: a client serving
// the signed ingestion endpoint and the search API over HTTP.
type IndexServer struct {
	t      *testing.T
	Client *searchsync.Client
	HTTP   *httptest.Server
	Key    auth.APIKey
	Secret string
}

// NewIndexServer stands up the index side with a fresh SQLite store and
// one API key for the given project.
func NewIndexServer(t *testing.T, projectID string) *IndexServer {
	t.Helper()

	client, err := searchsync.New(
		searchsync.WithSQLite(filepath.Join(t.TempDir(), "index.db")),
		searchsync.WithSources(config.NewSources(map[string][]string{projectID: {"pages"}})),
	)
	require.NoError(t, err)

	key, secret, err := client.CreateAPIKey(context.Background(), projectID)
	require.NoError(t, err)

	logger := client.Logger()
	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		r.Mount("/index", v1.NewIngestRouter(client.Ingest, client.Keys, 5*time.Minute, client.Metrics, logger).Routes())
		r.Mount("/search", v1.NewSearchRouter(client.Search, logger).Routes())
	})
	httpServer := httptest.NewServer(router)

	is := &IndexServer{
		t:      t,
		Client: client,
		HTTP:   httpServer,
		Key:    key,
		Secret: secret,
	}
	t.Cleanup(func() {
		httpServer.Close()
		_ = client.Close()
	})
	return is
}

// NewCMSClient stands up the CMS side: hook, queue, and dispatcher
// delivering to the given remote with tight timings so tests converge
// quickly.
func NewCMSClient(t *testing.T, projectID, remoteURL, keyID, secret string) *searchsync.Client {
	t.Helper()

	client, err := searchsync.New(
		searchsync.WithSQLite(filepath.Join(t.TempDir(), "cms.db")),
		searchsync.WithSources(config.NewSources(map[string][]string{projectID: {"pages"}})),
		searchsync.WithQueue(config.NewQueueConfig().
			WithDebounceDelay(10*time.Millisecond).
			WithDrainTick(10*time.Millisecond)),
		searchsync.WithRemote(config.NewRemoteConfig().
			WithBaseURL(remoteURL).
			WithKeyID(keyID).
			WithSecret(secret).
			WithTimeout(5*time.Second).
			WithMaxRetries(2).
			WithInitialDelay(time.Millisecond).
			WithBatchSize(10)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	client.StartDispatcher()
	return client
}
