package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/searchsync/searchsync/domain/auth"
	"github.com/searchsync/searchsync/infrastructure/metrics"
	"github.com/searchsync/searchsync/internal/log"
	"github.com/searchsync/searchsync/internal/signing"
)

// maxSignedBodyBytes caps how much request body the verifier will buffer.
const maxSignedBodyBytes = 10 << 20

// KeyResolver looks up API keys by their public identifier.
type KeyResolver interface {
	FindByKeyID(ctx context.Context, keyID string) (auth.APIKey, error)
}

type projectContextKey struct{}

// ProjectFromContext returns the project ID the verified API key authorizes.
func ProjectFromContext(ctx context.Context) (string, bool) {
	projectID, ok := ctx.Value(projectContextKey{}).(string)
	return projectID, ok
}

// Signature returns a middleware that authenticates requests with the
// timestamp-bound HMAC scheme. The HMAC key is the digest of the provisioned
// secret, so the raw secret is never stored on the receiving side. On
// success the key's project ID is placed in the request context.
func Signature(resolver KeyResolver, maxSkew time.Duration, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID := r.Header.Get(signing.HeaderKeyID)
			sig := r.Header.Get(signing.HeaderSignature)
			ts := r.Header.Get(signing.HeaderTimestamp)
			if keyID == "" || sig == "" || ts == "" {
				unauthorized(w, r, m, logger, "missing signature headers")
				return
			}

			key, err := resolver.FindByKeyID(r.Context(), keyID)
			if err != nil {
				// Unknown keys and lookup failures get the same response,
				// so key IDs cannot be probed.
				logger.Warn("api key lookup failed", "key_id", keyID, "error", err)
				unauthorized(w, r, m, logger, "invalid credentials")
				return
			}

			now := time.Now()
			if !key.IsActive(now) {
				unauthorized(w, r, m, logger, "invalid credentials")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes))
			if err != nil {
				WriteError(w, r, NewAPIError(http.StatusBadRequest, "unreadable request body", err), logger)
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			signer := signing.NewSigner(key.SecretHash()).WithMaxSkew(maxSkew)
			if err := signer.Verify(r.Method, r.URL.Path, body, ts, sig, now); err != nil {
				if errors.Is(err, signing.ErrStaleTimestamp) || errors.Is(err, signing.ErrBadTimestamp) {
					logger.Warn("rejected stale or malformed timestamp", "key_id", keyID, "error", err)
				}
				unauthorized(w, r, m, logger, "invalid signature")
				return
			}

			ctx := context.WithValue(r.Context(), projectContextKey{}, key.ProjectID())
			ctx = log.WithProjectID(ctx, key.ProjectID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, m *metrics.Metrics, logger *slog.Logger, detail string) {
	m.AuthRejectionsTotal.Inc()
	WriteError(w, r, NewAPIError(http.StatusUnauthorized, detail, nil), logger)
}
