package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchsync/searchsync/domain/auth"
	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/infrastructure/api/v1/dto"
	"github.com/searchsync/searchsync/internal/config"
	"github.com/searchsync/searchsync/internal/signing"
)

const testSecret = "shared-secret"

func testEvents() []event.ChangeEvent {
	upsert := event.NewUpsert(
		event.NewDocumentKey("docs", "pages", "1", "en"),
		document.NewPayload("Title", "Body", "/1", "en", map[string]string{"section": "news"}),
	)
	del := event.NewDelete(event.NewDocumentKey("docs", "pages", "2", "en"))
	return []event.ChangeEvent{upsert, del}
}

func newTestClient(baseURL string) *Client {
	remote := config.NewRemoteConfig().
		WithBaseURL(baseURL).
		WithKeyID("key-1").
		WithSecret(testSecret)
	return NewClient(remote, nil)
}

func TestDeliverSignsAndParsesAcks(t *testing.T) {
	signer := signing.NewSigner(auth.HashSecret(testSecret))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/index/docs/batch", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get(signing.HeaderKeyID))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, signer.Verify(
			r.Method, r.URL.Path, body,
			r.Header.Get(signing.HeaderTimestamp),
			r.Header.Get(signing.HeaderSignature),
			time.Now(),
		))

		var req dto.BatchRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Len(t, req.Items, 2)
		assert.Equal(t, "upsert", req.Items[0].Operation)
		assert.NotNil(t, req.Items[0].Payload)
		assert.NotEmpty(t, req.Items[0].ContentHash)
		assert.Equal(t, "delete", req.Items[1].Operation)
		assert.Nil(t, req.Items[1].Payload)

		resp := dto.BatchResponse{Results: []dto.ItemResult{
			{SourceTable: "pages", RecordID: "1", Language: "en", Status: dto.StatusIndexed},
			{SourceTable: "pages", RecordID: "2", Language: "en", Status: dto.StatusDeleted},
		}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	acks, err := newTestClient(srv.URL).Deliver(context.Background(), "docs", testEvents())
	require.NoError(t, err)
	require.Len(t, acks, 2)
	assert.Equal(t, "docs/pages/1/en", acks[0].Key.String())
	assert.True(t, acks[0].Accepted())
	assert.True(t, acks[1].Accepted())
}

func TestDeliverEmptyBatchSkipsCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	}))
	defer srv.Close()

	acks, err := newTestClient(srv.URL).Deliver(context.Background(), "docs", nil)
	require.NoError(t, err)
	assert.Empty(t, acks)
}

func TestDeliverClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Deliver(context.Background(), "docs", testEvents())
			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))

			var de *DeliveryError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.status, de.Status())
		})
	}
}

func TestDeliverTransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).Deliver(context.Background(), "docs", testEvents())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestDeliverRejectedAckIsTerminalButParsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := dto.BatchResponse{Results: []dto.ItemResult{
			{SourceTable: "pages", RecordID: "1", Language: "en", Status: dto.StatusRejected, Error: "payload too large"},
			{SourceTable: "pages", RecordID: "2", Language: "en", Status: dto.StatusDeleted},
		}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	acks, err := newTestClient(srv.URL).Deliver(context.Background(), "docs", testEvents())
	require.NoError(t, err)
	require.Len(t, acks, 2)
	assert.False(t, acks[0].Accepted())
	assert.Equal(t, "payload too large", acks[0].Reason)
	assert.True(t, acks[1].Accepted())
}

func TestIsRetryableOtherErrors(t *testing.T) {
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(nil))
}
