package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/search"
	"github.com/searchsync/searchsync/infrastructure/metrics"
	"github.com/searchsync/searchsync/infrastructure/provider"
)

const snippetMaxRunes = 200

// DocumentSearcher is the retrieval surface of the document store.
type DocumentSearcher interface {
	SearchLexical(ctx context.Context, q search.Query) ([]search.Result, error)
	SearchVector(ctx context.Context, q search.Query, embedding []float32) ([]search.Result, error)
	GetByID(ctx context.Context, id string) (document.Document, bool, error)
}

// Hit is one ranked search result with its document resolved.
type Hit struct {
	Document document.Document
	Snippet  string
	Score    float64
}

// SearchService answers hybrid queries: lexical and vector retrieval run
// against the same index and their rankings are fused. Without an embedding
// provider the service degrades to lexical-only results.
type SearchService struct {
	docs     DocumentSearcher
	embedder provider.Embedder
	fusion   search.Fusion

	defaultLimit int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(docs DocumentSearcher, embedder provider.Embedder, defaultLimit int, m *metrics.Metrics, logger *slog.Logger) *SearchService {
	if embedder == nil {
		embedder = provider.NullEmbedder{}
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		docs:         docs,
		embedder:     embedder,
		fusion:       search.NewFusion(),
		defaultLimit: defaultLimit,
		metrics:      m,
		logger:       logger,
	}
}

// Search runs one query and returns ranked hits.
func (s *SearchService) Search(ctx context.Context, q search.Query) ([]Hit, error) {
	if strings.TrimSpace(q.Text()) == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrValidation)
	}
	if q.ProjectID() == "" {
		return nil, fmt.Errorf("%w: project is required", ErrValidation)
	}
	topK := q.TopK()
	if topK <= 0 {
		topK = s.defaultLimit
		q = search.NewQuery(q.ProjectID(), q.Text(), q.Filters(), topK)
	}

	start := time.Now()
	mode := "hybrid"

	lexical, err := s.docs.SearchLexical(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	vector, err := s.vectorResults(ctx, q)
	if err != nil {
		return nil, err
	}
	if vector == nil {
		mode = "lexical"
	}

	fused := s.fusion.FuseTopK(topK, lexical, vector)
	hits, err := s.resolve(ctx, q.Text(), fused)
	if err != nil {
		return nil, err
	}

	s.metrics.SearchLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	return hits, nil
}

// vectorResults embeds the query text and runs vector retrieval. A nil
// result with nil error means the vector path is unavailable.
func (s *SearchService) vectorResults(ctx context.Context, q search.Query) ([]search.Result, error) {
	vectors, err := s.embedder.Embed(ctx, []string{q.Text()})
	if err != nil {
		if errors.Is(err, provider.ErrNotConfigured) {
			return nil, nil
		}
		// A degraded provider should not break search entirely.
		s.logger.Warn("query embedding failed, returning lexical results only",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, nil
	}

	results, err := s.docs.SearchVector(ctx, q, vectors[0])
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

// resolve loads the fused results' documents and builds snippets. A result
// whose document vanished between ranking and resolution is dropped.
func (s *SearchService) resolve(ctx context.Context, queryText string, results []search.Result) ([]Hit, error) {
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		doc, found, err := s.docs.GetByID(ctx, r.DocumentID())
		if err != nil {
			return nil, fmt.Errorf("resolve document %s: %w", r.DocumentID(), err)
		}
		if !found {
			continue
		}
		hits = append(hits, Hit{
			Document: doc,
			Snippet:  snippet(doc.Payload().Body(), queryText),
			Score:    r.Score(),
		})
	}
	return hits, nil
}

// snippet extracts a short excerpt of the body centered on the first query
// term occurrence, falling back to the leading text.
func snippet(body, queryText string) string {
	if body == "" {
		return ""
	}
	runes := []rune(body)

	start := 0
	lower := strings.ToLower(body)
	for _, term := range strings.Fields(strings.ToLower(queryText)) {
		term = strings.TrimFunc(term, unicode.IsPunct)
		if term == "" {
			continue
		}
		if idx := strings.Index(lower, term); idx >= 0 {
			start = len([]rune(lower[:idx]))
			break
		}
	}

	// Back up so the match sits inside the excerpt, not at its edge.
	if start > snippetMaxRunes/4 {
		start -= snippetMaxRunes / 4
	} else {
		start = 0
	}

	end := start + snippetMaxRunes
	if end > len(runes) {
		end = len(runes)
	}
	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
