package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchsync/searchsync/application/service"
	"github.com/searchsync/searchsync/domain/auth"
	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/infrastructure/api/v1/dto"
	"github.com/searchsync/searchsync/internal/signing"
)

type memWriter struct {
	docs    map[string]document.Document
	saveErr error
}

func newMemWriter() *memWriter {
	return &memWriter{docs: make(map[string]document.Document)}
}

func (m *memWriter) Save(_ context.Context, doc document.Document) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.docs[doc.ID()] = doc
	return nil
}

func (m *memWriter) Delete(_ context.Context, projectID, table, record, lang string) (bool, error) {
	id := projectID + "/" + table + "/" + record + "/" + lang
	_, ok := m.docs[id]
	delete(m.docs, id)
	return ok, nil
}

func (m *memWriter) ContentHash(_ context.Context, projectID, table, record, lang string) (document.ContentHash, error) {
	doc, ok := m.docs[projectID+"/"+table+"/"+record+"/"+lang]
	if !ok {
		return "", nil
	}
	return doc.ContentHash(), nil
}

type mapResolver map[string]auth.APIKey

func (r mapResolver) FindByKeyID(_ context.Context, keyID string) (auth.APIKey, error) {
	key, ok := r[keyID]
	if !ok {
		return auth.APIKey{}, errors.New("not found")
	}
	return key, nil
}

const ingestSecret = "batch-secret"

func newIngestServer(t *testing.T, writer *memWriter) *httptest.Server {
	t.Helper()
	resolver := mapResolver{"key-1": auth.NewAPIKey("key-1", "docs", ingestSecret)}
	ingest := service.NewIngestService(writer, nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/api/v1/index", NewIngestRouter(ingest, resolver, signing.DefaultMaxSkew, nil, nil).Routes())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postSignedBatch(t *testing.T, srv *httptest.Server, projectID string, batch dto.BatchRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(batch)
	require.NoError(t, err)

	path := "/api/v1/index/" + projectID + "/batch"
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)

	now := time.Now()
	signer := signing.NewSigner(auth.HashSecret(ingestSecret))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signing.HeaderKeyID, "key-1")
	req.Header.Set(signing.HeaderTimestamp, signing.Timestamp(now))
	req.Header.Set(signing.HeaderSignature, signer.Sign(http.MethodPost, path, body, now))

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func batchOf(items ...dto.BatchItem) dto.BatchRequest {
	return dto.BatchRequest{Items: items}
}

func upsertBatchItem(record, title string) dto.BatchItem {
	p := document.NewPayload(title, "body text", "/"+record, "en", nil)
	return dto.BatchItem{
		SourceTable: "pages",
		RecordID:    record,
		Language:    "en",
		Operation:   "upsert",
		OccurredAt:  time.Now(),
		ContentHash: document.HashPayload(p).String(),
		Payload: &dto.PayloadDTO{
			Title: title,
			Body:  "body text",
			URL:   "/" + record,
		},
	}
}

func decodeBatchResponse(t *testing.T, resp *http.Response) dto.BatchResponse {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out dto.BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestBatchIndexesAndAcknowledges(t *testing.T) {
	writer := newMemWriter()
	srv := newIngestServer(t, writer)

	resp := postSignedBatch(t, srv, "docs", batchOf(upsertBatchItem("1", "Hello")))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBatchResponse(t, resp)
	require.Len(t, out.Results, 1)
	assert.Equal(t, dto.StatusIndexed, out.Results[0].Status)
	assert.Len(t, writer.docs, 1)
}

func TestBatchRedeliveryIsIdempotent(t *testing.T) {
	writer := newMemWriter()
	srv := newIngestServer(t, writer)
	batch := batchOf(upsertBatchItem("1", "Hello"))

	first := decodeBatchResponse(t, postSignedBatch(t, srv, "docs", batch))
	assert.Equal(t, dto.StatusIndexed, first.Results[0].Status)

	second := decodeBatchResponse(t, postSignedBatch(t, srv, "docs", batch))
	assert.Equal(t, dto.StatusSkipped, second.Results[0].Status)
	assert.Len(t, writer.docs, 1)
}

func TestBatchMixedOperations(t *testing.T) {
	writer := newMemWriter()
	srv := newIngestServer(t, writer)

	seed := decodeBatchResponse(t, postSignedBatch(t, srv, "docs", batchOf(upsertBatchItem("1", "Hello"))))
	require.Equal(t, dto.StatusIndexed, seed.Results[0].Status)

	del := dto.BatchItem{SourceTable: "pages", RecordID: "1", Language: "en", Operation: "delete", OccurredAt: time.Now()}
	bad := dto.BatchItem{SourceTable: "", RecordID: "2", Language: "en", Operation: "upsert", OccurredAt: time.Now()}

	out := decodeBatchResponse(t, postSignedBatch(t, srv, "docs", batchOf(del, bad, upsertBatchItem("3", "New"))))
	require.Len(t, out.Results, 3)
	assert.Equal(t, dto.StatusDeleted, out.Results[0].Status)
	assert.Equal(t, dto.StatusRejected, out.Results[1].Status)
	assert.Equal(t, dto.StatusIndexed, out.Results[2].Status)
}

func TestBatchRejectsMismatchedProject(t *testing.T) {
	srv := newIngestServer(t, newMemWriter())

	// The key authorizes "docs"; the path names another project.
	resp := postSignedBatch(t, srv, "other", batchOf(upsertBatchItem("1", "Hello")))
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBatchRejectsUnsignedRequest(t *testing.T) {
	srv := newIngestServer(t, newMemWriter())

	body, _ := json.Marshal(batchOf(upsertBatchItem("1", "Hello")))
	resp, err := srv.Client().Post(srv.URL+"/api/v1/index/docs/batch", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBatchRejectsEmptyBatch(t *testing.T) {
	srv := newIngestServer(t, newMemWriter())

	resp := postSignedBatch(t, srv, "docs", dto.BatchRequest{})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBatchStorageFailureReturnsServerError(t *testing.T) {
	writer := newMemWriter()
	writer.saveErr = errors.New("disk full")
	srv := newIngestServer(t, writer)

	resp := postSignedBatch(t, srv, "docs", batchOf(upsertBatchItem("1", "Hello")))
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
