package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchsync/searchsync/domain/auth"
	"github.com/searchsync/searchsync/infrastructure/metrics"
	"github.com/searchsync/searchsync/internal/signing"
)

type staticResolver struct {
	keys map[string]auth.APIKey
}

func (r *staticResolver) FindByKeyID(_ context.Context, keyID string) (auth.APIKey, error) {
	key, ok := r.keys[keyID]
	if !ok {
		return auth.APIKey{}, errors.New("api key not found")
	}
	return key, nil
}

func testHandler(t *testing.T, gotProject *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := ProjectFromContext(r.Context())
		require.True(t, ok)
		*gotProject = projectID
		w.WriteHeader(http.StatusNoContent)
	})
}

func signedRequest(t *testing.T, secret, keyID string, body []byte, at time.Time) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/docs/batch", bytes.NewReader(body))
	signer := signing.NewSigner(auth.HashSecret(secret))
	req.Header.Set(signing.HeaderKeyID, keyID)
	req.Header.Set(signing.HeaderTimestamp, signing.Timestamp(at))
	req.Header.Set(signing.HeaderSignature, signer.Sign(http.MethodPost, req.URL.Path, body, at))
	return req
}

func TestSignatureAcceptsValidRequest(t *testing.T) {
	resolver := &staticResolver{keys: map[string]auth.APIKey{
		"key-1": auth.NewAPIKey("key-1", "docs", "secret"),
	}}

	var gotProject string
	mw := Signature(resolver, signing.DefaultMaxSkew, nil, nil)
	rec := httptest.NewRecorder()

	body := []byte(`{"items":[]}`)
	mw(testHandler(t, &gotProject)).ServeHTTP(rec, signedRequest(t, "secret", "key-1", body, time.Now()))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "docs", gotProject)
}

func TestSignatureRejectsMissingHeaders(t *testing.T) {
	resolver := &staticResolver{keys: map[string]auth.APIKey{}}
	mw := Signature(resolver, signing.DefaultMaxSkew, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/docs/batch", nil)
	mw(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignatureRejectsUnknownKey(t *testing.T) {
	resolver := &staticResolver{keys: map[string]auth.APIKey{}}
	mw := Signature(resolver, signing.DefaultMaxSkew, nil, nil)

	rec := httptest.NewRecorder()
	mw(http.NotFoundHandler()).ServeHTTP(rec, signedRequest(t, "secret", "ghost", nil, time.Now()))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignatureRejectsRevokedKey(t *testing.T) {
	revoked := auth.NewAPIKey("key-1", "docs", "secret").Revoke(time.Now().Add(-time.Hour))
	resolver := &staticResolver{keys: map[string]auth.APIKey{"key-1": revoked}}
	mw := Signature(resolver, signing.DefaultMaxSkew, nil, nil)

	rec := httptest.NewRecorder()
	mw(http.NotFoundHandler()).ServeHTTP(rec, signedRequest(t, "secret", "key-1", nil, time.Now()))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignatureRejectsStaleTimestamp(t *testing.T) {
	resolver := &staticResolver{keys: map[string]auth.APIKey{
		"key-1": auth.NewAPIKey("key-1", "docs", "secret"),
	}}
	mw := Signature(resolver, signing.DefaultMaxSkew, nil, nil)

	rec := httptest.NewRecorder()
	stale := time.Now().Add(-10 * time.Minute)
	mw(http.NotFoundHandler()).ServeHTTP(rec, signedRequest(t, "secret", "key-1", nil, stale))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignatureRejectsTamperedBody(t *testing.T) {
	resolver := &staticResolver{keys: map[string]auth.APIKey{
		"key-1": auth.NewAPIKey("key-1", "docs", "secret"),
	}}
	mw := Signature(resolver, signing.DefaultMaxSkew, nil, nil)

	req := signedRequest(t, "secret", "key-1", []byte(`{"items":[]}`), time.Now())
	req.Body = httptest.NewRequest(http.MethodPost, "/x", bytes.NewReader([]byte(`{"items":[{}]}`))).Body

	rec := httptest.NewRecorder()
	mw(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignatureRejectsWrongSecret(t *testing.T) {
	resolver := &staticResolver{keys: map[string]auth.APIKey{
		"key-1": auth.NewAPIKey("key-1", "docs", "secret"),
	}}
	mw := Signature(resolver, signing.DefaultMaxSkew, nil, nil)

	rec := httptest.NewRecorder()
	mw(http.NotFoundHandler()).ServeHTTP(rec, signedRequest(t, "wrong", "key-1", nil, time.Now()))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignatureRestoresBodyForHandler(t *testing.T) {
	resolver := &staticResolver{keys: map[string]auth.APIKey{
		"key-1": auth.NewAPIKey("key-1", "docs", "secret"),
	}}
	mw := Signature(resolver, signing.DefaultMaxSkew, nil, nil)

	body := []byte(strconv.Quote("payload"))
	var seen []byte
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		seen = buf.Bytes()
	})

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, signedRequest(t, "secret", "key-1", body, time.Now()))

	assert.Equal(t, body, seen)
}

func TestSignatureCountsRejections(t *testing.T) {
	resolver := &staticResolver{keys: map[string]auth.APIKey{
		"key-1": auth.NewAPIKey("key-1", "docs", "secret"),
	}}
	m := metrics.New()
	mw := Signature(resolver, signing.DefaultMaxSkew, m, nil)

	rec := httptest.NewRecorder()
	mw(http.NotFoundHandler()).ServeHTTP(rec, signedRequest(t, "wrong", "key-1", nil, time.Now()))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthRejectionsTotal))
}
