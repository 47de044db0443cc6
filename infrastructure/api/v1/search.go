package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/searchsync/searchsync/application/service"
	"github.com/searchsync/searchsync/domain/search"
	"github.com/searchsync/searchsync/infrastructure/api/jsonapi"
	"github.com/searchsync/searchsync/infrastructure/api/middleware"
	"github.com/searchsync/searchsync/infrastructure/api/v1/dto"
)

// SearchRouter handles the query API.
type SearchRouter struct {
	search *service.SearchService
	logger *slog.Logger
}

// NewSearchRouter creates a SearchRouter.
func NewSearchRouter(searchSvc *service.SearchService, logger *slog.Logger) *SearchRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchRouter{
		search: searchSvc,
		logger: logger,
	}
}

// Routes returns the chi router for search endpoints. CORS is open so
// browser-embedded search widgets can query directly.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	router.Post("/{project_id}", r.Search)
	return router
}

// Search handles POST /api/v1/search/{project_id}.
func (r *SearchRouter) Search(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	projectID := chi.URLParam(req, "project_id")

	var body dto.SearchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "malformed search body", err), r.logger)
		return
	}

	filters := search.NewFilters(
		search.WithLanguages(body.Languages...),
		search.WithTables(body.Tables...),
	)
	query := search.NewQuery(projectID, body.Query, filters, body.Limit)

	hits, err := r.search.Search(ctx, query)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	resources := make([]*jsonapi.Resource, len(hits))
	for i, hit := range hits {
		doc := hit.Document
		resources[i] = jsonapi.NewResource("search-hit", doc.ID(), dto.SearchHitAttributes{
			ProjectID:   doc.ProjectID(),
			SourceTable: doc.SourceTable(),
			RecordID:    doc.RecordID(),
			Language:    doc.Language(),
			Title:       doc.Payload().Title(),
			Snippet:     hit.Snippet,
			URL:         doc.Payload().URL(),
			Metadata:    doc.Payload().Metadata(),
			Score:       hit.Score,
		})
	}

	response := jsonapi.NewListResponse(resources)
	response.Meta = &jsonapi.Meta{"total": len(resources), "query": body.Query}
	middleware.WriteJSON(w, http.StatusOK, response)
}
