// Package v1 implements the versioned HTTP API handlers.
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/searchsync/searchsync/application/service"
	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/infrastructure/api/middleware"
	"github.com/searchsync/searchsync/infrastructure/api/v1/dto"
	"github.com/searchsync/searchsync/infrastructure/metrics"
	"github.com/searchsync/searchsync/infrastructure/webhook"
)

// maxBatchItems bounds one ingestion request.
const maxBatchItems = 1000

// IngestRouter handles the signed ingestion endpoint.
type IngestRouter struct {
	ingest   *service.IngestService
	resolver middleware.KeyResolver
	maxSkew  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewIngestRouter creates an IngestRouter.
func NewIngestRouter(ingest *service.IngestService, resolver middleware.KeyResolver, maxSkew time.Duration, m *metrics.Metrics, logger *slog.Logger) *IngestRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestRouter{
		ingest:   ingest,
		resolver: resolver,
		maxSkew:  maxSkew,
		metrics:  m,
		logger:   logger,
	}
}

// Routes returns the chi router for ingestion endpoints. Every route sits
// behind signature verification.
func (r *IngestRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Signature(r.resolver, r.maxSkew, r.metrics, r.logger))
	router.Post("/{project_id}/batch", r.Batch)
	return router
}

// Batch handles POST /api/v1/index/{project_id}/batch. The verified API key
// must belong to the project named in the path.
func (r *IngestRouter) Batch(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	projectID := chi.URLParam(req, "project_id")
	authorized, ok := middleware.ProjectFromContext(ctx)
	if !ok {
		middleware.WriteError(w, req, service.ErrUnauthorized, r.logger)
		return
	}
	if authorized != projectID {
		r.logger.Warn("api key project does not match path",
			"authorized_project", authorized,
			"path_project", projectID,
		)
		middleware.WriteError(w, req, service.ErrForbidden, r.logger)
		return
	}

	var body dto.BatchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "malformed batch body", err), r.logger)
		return
	}
	if len(body.Items) == 0 {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "batch contains no items", nil), r.logger)
		return
	}
	if len(body.Items) > maxBatchItems {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "batch exceeds item limit", nil), r.logger)
		return
	}

	if deliveryID := req.Header.Get(webhook.HeaderDeliveryID); deliveryID != "" {
		r.logger.Debug("processing delivery",
			"delivery_id", deliveryID,
			"project_id", projectID,
			"items", len(body.Items),
		)
	}

	results, err := r.ingest.Apply(ctx, projectID, toIngestItems(body.Items))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toBatchResponse(results))
}

func toIngestItems(items []dto.BatchItem) []service.IngestItem {
	out := make([]service.IngestItem, len(items))
	for i, item := range items {
		in := service.IngestItem{
			SourceTable: item.SourceTable,
			RecordID:    item.RecordID,
			Language:    item.Language,
			Operation:   event.Operation(item.Operation),
			OccurredAt:  item.OccurredAt,
			ContentHash: item.ContentHash,
		}
		if item.Payload != nil {
			p := document.NewPayload(item.Payload.Title, item.Payload.Body, item.Payload.URL, item.Language, item.Payload.Metadata)
			in.Payload = &p
		}
		out[i] = in
	}
	return out
}

func toBatchResponse(results []service.IngestResult) dto.BatchResponse {
	out := make([]dto.ItemResult, len(results))
	for i, r := range results {
		out[i] = dto.ItemResult{
			SourceTable: r.SourceTable,
			RecordID:    r.RecordID,
			Language:    r.Language,
			Status:      r.Status,
			Error:       r.Err,
		}
	}
	return dto.BatchResponse{Results: out}
}
