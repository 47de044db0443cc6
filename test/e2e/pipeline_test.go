package e2e_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/domain/search"
)

func pagePayload(title, body, url, language string) map[string]document.Payload {
	return map[string]document.Payload{
		language: document.NewPayload(title, body, url, language, nil),
	}
}

// searchTitles polls the index; errors read as "not there yet" so it can
// run inside require.Eventually.
func searchTitles(ctx context.Context, t *testing.T, index *IndexServer, projectID, text string) []string {
	t.Helper()
	hits, err := index.Client.Search.Search(ctx, search.NewQuery(projectID, text, search.NewFilters(), 10))
	if err != nil {
		return nil
	}
	titles := make([]string, 0, len(hits))
	for _, hit := range hits {
		titles = append(titles, hit.Document.Payload().Title())
	}
	return titles
}

// The full loop: a CMS save travels through hook, queue, and signed
// delivery into the index, edits converge to the last state, and a
// delete removes the document again.
func TestPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	index := NewIndexServer(t, "demo")
	cms := NewCMSClient(t, "demo", index.HTTP.URL, index.Key.KeyID(), index.Secret)

	cms.Hook.Notify(ctx, event.NewMutation("demo", "pages", "42", event.MutationCreate, time.Now().UTC(),
		pagePayload("Hello", "Hello body", "/hello", "de")))

	require.Eventually(t, func() bool {
		return len(searchTitles(ctx, t, index, "demo", "hello")) == 1
	}, 5*time.Second, 20*time.Millisecond, "created document never reached the index")

	cms.Hook.Notify(ctx, event.NewMutation("demo", "pages", "42", event.MutationUpdate, time.Now().UTC(),
		pagePayload("Hello World", "Hello world body", "/hello", "de")))

	require.Eventually(t, func() bool {
		titles := searchTitles(ctx, t, index, "demo", "hello")
		return len(titles) == 1 && titles[0] == "Hello World"
	}, 5*time.Second, 20*time.Millisecond, "edit never converged")

	cms.Hook.Notify(ctx, event.NewMutation("demo", "pages", "42", event.MutationDelete, time.Now().UTC(),
		pagePayload("Hello World", "", "/hello", "de")))

	require.Eventually(t, func() bool {
		return len(searchTitles(ctx, t, index, "demo", "hello")) == 0
	}, 5*time.Second, 20*time.Millisecond, "delete never reached the index")

	letters, err := cms.DeadLetters.List(ctx, "demo", true, 10)
	require.NoError(t, err)
	assert.Empty(t, letters)
}

// Redelivering an unchanged record is acknowledged but writes nothing.
func TestPipelineRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	index := NewIndexServer(t, "demo")
	cms := NewCMSClient(t, "demo", index.HTTP.URL, index.Key.KeyID(), index.Secret)

	mutation := event.NewMutation("demo", "pages", "7", event.MutationUpdate, time.Now().UTC(),
		pagePayload("Stable", "Stable body", "/stable", "en"))

	cms.Hook.Notify(ctx, mutation)
	require.Eventually(t, func() bool {
		return len(searchTitles(ctx, t, index, "demo", "stable")) == 1
	}, 5*time.Second, 20*time.Millisecond)

	doc, found, err := index.Client.Document(ctx, "demo", "pages", "7", "en")
	require.NoError(t, err)
	require.True(t, found)
	firstUpdate := doc.UpdatedAt()

	cms.Hook.Notify(ctx, event.NewMutation("demo", "pages", "7", event.MutationUpdate, time.Now().UTC(),
		pagePayload("Stable", "Stable body", "/stable", "en")))
	require.Eventually(t, func() bool { return cms.Queue.Len() == 0 }, 5*time.Second, 20*time.Millisecond)

	doc, found, err = index.Client.Document(ctx, "demo", "pages", "7", "en")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, firstUpdate, doc.UpdatedAt(), "unchanged redelivery must not rewrite the document")
}

// A key revoked on the index side turns deliveries into terminal
// authentication failures that land in the dead-letter store without any
// index write.
func TestPipelineRevokedKeyDeadLetters(t *testing.T) {
	ctx := context.Background()
	index := NewIndexServer(t, "demo")
	cms := NewCMSClient(t, "demo", index.HTTP.URL, index.Key.KeyID(), index.Secret)

	require.NoError(t, index.Client.RevokeAPIKey(ctx, index.Key.KeyID()))

	cms.Hook.Notify(ctx, event.NewMutation("demo", "pages", "9", event.MutationCreate, time.Now().UTC(),
		pagePayload("Secret", "Secret body", "/secret", "en")))

	require.Eventually(t, func() bool {
		letters, err := cms.DeadLetters.List(ctx, "demo", false, 10)
		return err == nil && len(letters) == 1
	}, 5*time.Second, 20*time.Millisecond, "rejected delivery never dead-lettered")

	letters, err := cms.DeadLetters.List(ctx, "demo", false, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, letters[0].Event().Attempts(), "authentication failures must not be retried")
	assert.Empty(t, searchTitles(ctx, t, index, "demo", "secret"))
}

// A remote that always answers 503 exhausts its retries and the
// event is parked for replay; a later replay against a healthy remote
// delivers it.
func TestPipelineRetryExhaustionAndReplay(t *testing.T) {
	ctx := context.Background()
	index := NewIndexServer(t, "demo")

	var down atomic.Bool
	down.Store(true)
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		index.HTTP.Config.Handler.ServeHTTP(w, r)
	}))
	t.Cleanup(proxy.Close)

	cms := NewCMSClient(t, "demo", proxy.URL, index.Key.KeyID(), index.Secret)

	cms.Hook.Notify(ctx, event.NewMutation("demo", "pages", "11", event.MutationCreate, time.Now().UTC(),
		pagePayload("Delayed", "Delayed body", "/delayed", "en")))

	var letterID int64
	require.Eventually(t, func() bool {
		letters, err := cms.DeadLetters.List(ctx, "demo", false, 10)
		if err != nil || len(letters) != 1 {
			return false
		}
		letterID = letters[0].ID()
		return true
	}, 5*time.Second, 20*time.Millisecond, "unreachable remote never dead-lettered")

	letters, err := cms.DeadLetters.List(ctx, "demo", false, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, letters[0].Event().Attempts(), "delivery stops at the configured attempt ceiling")

	down.Store(false)
	_, err = cms.DeadLetters.Replay(ctx, "demo", letterID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(searchTitles(ctx, t, index, "demo", "delayed")) == 1
	}, 5*time.Second, 20*time.Millisecond, "replayed event never reached the index")
}

// Reindex walks the CMS tables and queues every record; running it again
// on an unchanged dataset leaves the index untouched.
func TestPipelineReindexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	index := NewIndexServer(t, "demo")
	cms := NewCMSClient(t, "demo", index.HTTP.URL, index.Key.KeyID(), index.Secret)

	db := cms.Database()
	require.NoError(t, db.Session(ctx).Exec(
		`CREATE TABLE pages (id TEXT, title TEXT, body TEXT, url TEXT, language TEXT, metadata TEXT)`,
	).Error)
	for _, row := range [][]string{
		{"1", "First", "First body", "/first"},
		{"2", "Second", "Second body", "/second"},
	} {
		require.NoError(t, db.Session(ctx).Exec(
			`INSERT INTO pages (id, title, body, url, language, metadata) VALUES (?, ?, ?, ?, 'en', '')`,
			row[0], row[1], row[2], row[3],
		).Error)
	}

	report, err := cms.Reindex.Reindex(ctx, "demo")
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.Records)
	assert.EqualValues(t, 2, report.Queued)
	assert.Zero(t, report.Failed)

	require.Eventually(t, func() bool {
		return len(searchTitles(ctx, t, index, "demo", "body")) == 2
	}, 5*time.Second, 20*time.Millisecond, "reindexed records never reached the index")

	doc, found, err := index.Client.Document(ctx, "demo", "pages", "1", "en")
	require.NoError(t, err)
	require.True(t, found)
	firstUpdate := doc.UpdatedAt()

	_, err = cms.Reindex.Reindex(ctx, "demo")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return cms.Queue.Len() == 0 }, 5*time.Second, 20*time.Millisecond)

	doc, found, err = index.Client.Document(ctx, "demo", "pages", "1", "en")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, firstUpdate, doc.UpdatedAt(), "second reindex run must be a no-op")

	letters, err := cms.DeadLetters.List(ctx, "demo", true, 10)
	require.NoError(t, err)
	assert.Empty(t, letters)
}

// A reindex whose deliveries all dead-letter drains the queue cleanly, so
// the table walk alone cannot tell success from failure. The dispatcher's
// failure count is what one-shot commands turn into a non-zero exit.
func TestPipelineReindexSurfacesDeadLetteredDeliveries(t *testing.T) {
	ctx := context.Background()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(broken.Close)

	cms := NewCMSClient(t, "demo", broken.URL, "key-x", "secret-x")

	db := cms.Database()
	require.NoError(t, db.Session(ctx).Exec(
		`CREATE TABLE pages (id TEXT, title TEXT, body TEXT, url TEXT, language TEXT, metadata TEXT)`,
	).Error)
	require.NoError(t, db.Session(ctx).Exec(
		`INSERT INTO pages (id, title, body, url, language, metadata) VALUES ('1', 'Lost', 'Lost body', '/lost', 'en', '')`,
	).Error)

	report, err := cms.Reindex.Reindex(ctx, "demo")
	require.NoError(t, err, "the table walk itself succeeds")
	assert.Zero(t, report.Failed)

	require.Eventually(t, func() bool { return cms.Queue.Len() == 0 }, 10*time.Second, 20*time.Millisecond,
		"dead-lettering drains the queue even though nothing was delivered")

	assert.Positive(t, cms.Dispatcher.DeadLettered(), "failed deliveries must be visible after the drain")

	letters, err := cms.DeadLetters.List(ctx, "demo", false, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
}
