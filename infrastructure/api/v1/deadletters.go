package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/searchsync/searchsync/application/service"
	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/infrastructure/api/jsonapi"
	"github.com/searchsync/searchsync/infrastructure/api/middleware"
	"github.com/searchsync/searchsync/infrastructure/api/v1/dto"
	"github.com/searchsync/searchsync/infrastructure/metrics"
)

// defaultDeadLetterLimit caps a list response when no limit is given.
const defaultDeadLetterLimit = 100

// DeadLetterRouter exposes the dead letter inspection and replay endpoints.
type DeadLetterRouter struct {
	deadLetters *service.DeadLetterService
	resolver    middleware.KeyResolver
	maxSkew     time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewDeadLetterRouter creates a DeadLetterRouter.
func NewDeadLetterRouter(deadLetters *service.DeadLetterService, resolver middleware.KeyResolver, maxSkew time.Duration, m *metrics.Metrics, logger *slog.Logger) *DeadLetterRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadLetterRouter{
		deadLetters: deadLetters,
		resolver:    resolver,
		maxSkew:     maxSkew,
		metrics:     m,
		logger:      logger,
	}
}

// Routes returns the chi router for dead letter endpoints. Replay mutates
// delivery state, so the whole surface sits behind signature verification
// like the ingestion routes.
func (r *DeadLetterRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Signature(r.resolver, r.maxSkew, r.metrics, r.logger))
	router.Get("/{project_id}", r.List)
	router.Post("/{project_id}/{id}/replay", r.Replay)
	return router
}

// authorize checks that the verified API key belongs to the project named
// in the path.
func (r *DeadLetterRouter) authorize(w http.ResponseWriter, req *http.Request, projectID string) bool {
	authorized, ok := middleware.ProjectFromContext(req.Context())
	if !ok {
		middleware.WriteError(w, req, service.ErrUnauthorized, r.logger)
		return false
	}
	if authorized != projectID {
		r.logger.Warn("api key project does not match path",
			"authorized_project", authorized,
			"path_project", projectID,
		)
		middleware.WriteError(w, req, service.ErrForbidden, r.logger)
		return false
	}
	return true
}

// List handles GET /api/v1/deadletters/{project_id}. Query parameters:
// include_replayed (bool), limit (int).
func (r *DeadLetterRouter) List(w http.ResponseWriter, req *http.Request) {
	projectID := chi.URLParam(req, "project_id")
	if !r.authorize(w, req, projectID) {
		return
	}
	includeReplayed := req.URL.Query().Get("include_replayed") == "true"

	limit := defaultDeadLetterLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid limit", err), r.logger)
			return
		}
		limit = parsed
	}

	dls, err := r.deadLetters.List(req.Context(), projectID, includeReplayed, limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	resources := make([]*jsonapi.Resource, len(dls))
	for i, dl := range dls {
		resources[i] = deadLetterResource(dl)
	}
	response := jsonapi.NewListResponse(resources)
	response.Meta = &jsonapi.Meta{"total": len(resources)}
	middleware.WriteJSON(w, http.StatusOK, response)
}

// Replay handles POST /api/v1/deadletters/{project_id}/{id}/replay.
func (r *DeadLetterRouter) Replay(w http.ResponseWriter, req *http.Request) {
	projectID := chi.URLParam(req, "project_id")
	if !r.authorize(w, req, projectID) {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid dead letter id", err), r.logger)
		return
	}

	dl, err := r.deadLetters.Replay(req.Context(), projectID, id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(deadLetterResource(dl)))
}

func deadLetterResource(dl event.DeadLetter) *jsonapi.Resource {
	key := dl.Event().Key()
	attrs := dto.DeadLetterAttributes{
		ProjectID:   key.ProjectID(),
		SourceTable: key.SourceTable(),
		RecordID:    key.RecordID(),
		Language:    key.Language(),
		Operation:   string(dl.Event().Operation()),
		Attempts:    dl.Event().Attempts(),
		LastError:   dl.LastError(),
		FailedAt:    dl.FailedAt().Format(time.RFC3339),
	}
	if replayedAt := dl.ReplayedAt(); replayedAt != nil {
		attrs.ReplayedAt = replayedAt.Format(time.RFC3339)
	}
	return jsonapi.NewResource("dead-letter", strconv.FormatInt(dl.ID(), 10), attrs)
}
