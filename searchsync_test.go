package searchsync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchsync/searchsync/application/service"
	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/domain/search"
	"github.com/searchsync/searchsync/infrastructure/persistence"
	"github.com/searchsync/searchsync/internal/config"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithSQLite(filepath.Join(t.TempDir(), "searchsync.db")),
		WithSources(config.NewSources(map[string][]string{"demo": {"pages"}})),
	}
	client, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewRequiresDatabase(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestClientWiresPipeline(t *testing.T) {
	client := newTestClient(t)

	assert.NotNil(t, client.Hook)
	assert.NotNil(t, client.Queue)
	assert.NotNil(t, client.Reindex)
	assert.NotNil(t, client.Ingest)
	assert.NotNil(t, client.Search)
	assert.NotNil(t, client.DeadLetters)
	assert.NotNil(t, client.Keys)
	assert.NotNil(t, client.Metrics)

	// No remote configured, so there is nothing to dispatch to.
	assert.Nil(t, client.Dispatcher)
	assert.False(t, client.VectorEnabled())
}

func TestClientHookQueuesMutation(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	mutation := event.NewMutation("demo", "pages", "42", event.MutationUpdate, time.Now().UTC(),
		map[string]document.Payload{
			"en": document.NewPayload("Hello", "Hello body", "/hello", "en", nil),
		})
	client.Hook.Notify(ctx, mutation)

	assert.Equal(t, 1, client.Queue.Len())
}

func TestClientIngestAndSearch(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	payload := document.NewPayload("Getting Started", "Install and run the service.", "/start", "en", nil)
	results, err := client.Ingest.Apply(ctx, "demo", []service.IngestItem{{
		SourceTable: "pages",
		RecordID:    "1",
		Language:    "en",
		Operation:   event.OperationUpsert,
		OccurredAt:  time.Now().UTC(),
		ContentHash: document.HashPayload(payload).String(),
		Payload:     &payload,
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, service.IngestStatusIndexed, results[0].Status)

	hits, err := client.Search.Search(ctx, search.NewQuery("demo", "install", search.NewFilters(), 10))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Getting Started", hits[0].Document.Payload().Title())
}

func TestClientAPIKeyLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	key, secret, err := client.CreateAPIKey(ctx, "demo")
	require.NoError(t, err)
	assert.NotEmpty(t, key.KeyID())
	assert.NotEmpty(t, secret)
	assert.True(t, key.IsActive(time.Now()))

	stored, err := client.Keys.FindByKeyID(ctx, key.KeyID())
	require.NoError(t, err)
	assert.True(t, stored.MatchesSecret(secret))

	require.NoError(t, client.RevokeAPIKey(ctx, key.KeyID()))
	revoked, err := client.Keys.FindByKeyID(ctx, key.KeyID())
	require.NoError(t, err)
	assert.False(t, revoked.IsActive(time.Now()))
}

func TestClientRevokeUnknownKey(t *testing.T) {
	client := newTestClient(t)
	assert.ErrorIs(t, client.RevokeAPIKey(context.Background(), "no-such-key"), service.ErrNotFound)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestClientReplayWithoutRemoteRefused(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	require.Nil(t, client.Dispatcher, "no remote endpoint means no dispatcher")

	ev := event.NewChangeEvent(
		event.NewDocumentKey("demo", "pages", "1", "en"),
		event.OperationUpsert,
		time.Now().UTC(),
		document.NewPayload("Parked", "body", "/parked", "en", nil),
	).WithAttempt()
	dl, err := persistence.NewDeadLetterStore(client.Database()).Append(ctx, event.NewDeadLetter(ev, "503 from indexing api", time.Now().UTC()))
	require.NoError(t, err)

	// With nobody draining the queue a replayed event would sit there until
	// the process exits, already marked replayed and gone for good.
	_, err = client.DeadLetters.Replay(ctx, "demo", dl.ID())
	assert.ErrorIs(t, err, service.ErrValidation)

	letters, err := client.DeadLetters.List(ctx, "demo", false, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.False(t, letters[0].IsReplayed())
}
