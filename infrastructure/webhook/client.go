// Package webhook delivers change events to the ingestion endpoint over
// signed HTTP.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/searchsync/searchsync/domain/auth"
	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/infrastructure/api/v1/dto"
	"github.com/searchsync/searchsync/internal/config"
	"github.com/searchsync/searchsync/internal/signing"
)

// HeaderDeliveryID identifies one delivery attempt across both sides' logs.
const HeaderDeliveryID = "X-Delivery-Id"

// DeliveryError describes a failed batch call. Retryable errors (429, 5xx,
// transport failures) are worth another attempt; everything else is terminal.
type DeliveryError struct {
	status    int
	message   string
	retryable bool
	cause     error
}

// NewDeliveryError creates a DeliveryError. status is 0 when the request
// never produced a response.
func NewDeliveryError(status int, message string, retryable bool, cause error) *DeliveryError {
	return &DeliveryError{
		status:    status,
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}

// Error implements error.
func (e *DeliveryError) Error() string {
	if e.status > 0 {
		return fmt.Sprintf("delivery failed (status %d): %s", e.status, e.message)
	}
	return fmt.Sprintf("delivery failed: %s", e.message)
}

// Unwrap returns the underlying cause.
func (e *DeliveryError) Unwrap() error { return e.cause }

// Status returns the HTTP status, or 0 for transport failures.
func (e *DeliveryError) Status() int { return e.status }

// Retryable reports whether another attempt may succeed.
func (e *DeliveryError) Retryable() bool { return e.retryable }

// IsRetryable reports whether err is a delivery error worth retrying.
func IsRetryable(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.retryable
	}
	return false
}

// Ack is the parsed acknowledgement for one delivered event.
type Ack struct {
	Key    event.DocumentKey
	Status string
	Reason string
}

// Accepted reports whether the item reached a durable state downstream.
// Rejected items are terminal but not accepted.
func (a Ack) Accepted() bool {
	return a.Status == dto.StatusIndexed || a.Status == dto.StatusDeleted || a.Status == dto.StatusSkipped
}

// Client posts event batches to the indexing API. One Client serves one
// remote endpoint; it is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	signer     signing.Signer
	logger     *slog.Logger
}

// NewClient creates a Client from remote configuration. The HMAC key is
// derived from the configured secret the same way the receiver stores it.
func NewClient(remote config.RemoteConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: remote.Timeout()},
		baseURL:    remote.BaseURL(),
		keyID:      remote.KeyID(),
		signer:     signing.NewSigner(auth.HashSecret(remote.Secret())),
		logger:     logger,
	}
}

// Deliver posts one batch of events for a project and returns the per-item
// acknowledgements. All events must belong to the given project. A non-2xx
// response or transport failure returns a DeliveryError covering the whole
// batch.
func (c *Client) Deliver(ctx context.Context, projectID string, events []event.ChangeEvent) ([]Ack, error) {
	if len(events) == 0 {
		return []Ack{}, nil
	}

	body, err := json.Marshal(batchRequest(events))
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	path := fmt.Sprintf("/api/v1/index/%s/batch", projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	deliveryID := uuid.NewString()
	now := time.Now()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderDeliveryID, deliveryID)
	req.Header.Set(signing.HeaderKeyID, c.keyID)
	req.Header.Set(signing.HeaderTimestamp, signing.Timestamp(now))
	req.Header.Set(signing.HeaderSignature, c.signer.Sign(http.MethodPost, path, body, now))

	c.logger.Debug("delivering batch",
		slog.String("delivery_id", deliveryID),
		slog.String("project_id", projectID),
		slog.Int("events", len(events)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DeliveryError{message: err.Error(), retryable: true, cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &DeliveryError{
			status:    resp.StatusCode,
			message:   string(bytes.TrimSpace(raw)),
			retryable: retryableStatus(resp.StatusCode),
		}
	}

	var batchResp dto.BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batchResp); err != nil {
		// A mangled body from a 2xx response is most likely a proxy hiccup.
		return nil, &DeliveryError{message: "unparseable response body", retryable: true, cause: err}
	}

	return acks(projectID, batchResp), nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func batchRequest(events []event.ChangeEvent) dto.BatchRequest {
	items := make([]dto.BatchItem, len(events))
	for i, ev := range events {
		key := ev.Key()
		item := dto.BatchItem{
			SourceTable: key.SourceTable(),
			RecordID:    key.RecordID(),
			Language:    key.Language(),
			Operation:   string(ev.Operation()),
			OccurredAt:  ev.OccurredAt(),
		}
		if ev.Operation() == event.OperationUpsert {
			payload := ev.Payload()
			item.ContentHash = ev.ContentHash().String()
			item.Payload = &dto.PayloadDTO{
				Title:    payload.Title(),
				Body:     payload.Body(),
				URL:      payload.URL(),
				Metadata: payload.Metadata(),
			}
		}
		items[i] = item
	}
	return dto.BatchRequest{Items: items}
}

func acks(projectID string, resp dto.BatchResponse) []Ack {
	out := make([]Ack, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = Ack{
			Key:    event.NewDocumentKey(projectID, r.SourceTable, r.RecordID, r.Language),
			Status: r.Status,
			Reason: r.Error,
		}
	}
	return out
}
