package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/infrastructure/metrics"
	"github.com/searchsync/searchsync/infrastructure/provider"
)

// DocumentWriter is the persistence surface ingestion needs.
type DocumentWriter interface {
	Save(ctx context.Context, doc document.Document) error
	Delete(ctx context.Context, projectID, sourceTable, recordID, language string) (bool, error)
	ContentHash(ctx context.Context, projectID, sourceTable, recordID, language string) (document.ContentHash, error)
}

// IngestItem is one change to apply to the index.
type IngestItem struct {
	SourceTable string
	RecordID    string
	Language    string
	Operation   event.Operation
	OccurredAt  time.Time
	ContentHash string
	Payload     *document.Payload
}

// IngestResult reports the outcome for one item.
type IngestResult struct {
	SourceTable string
	RecordID    string
	Language    string
	Status      string
	Err         string
}

// Item result statuses.
const (
	IngestStatusIndexed  = "indexed"
	IngestStatusDeleted  = "deleted"
	IngestStatusSkipped  = "skipped"
	IngestStatusRejected = "rejected"
)

// IngestService applies delivered change batches to the document store.
// Application is idempotent: a redelivered batch converges on the same
// index state, and unchanged content is skipped by content hash.
type IngestService struct {
	docs     DocumentWriter
	embedder provider.Embedder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewIngestService creates an IngestService. embedder may be a
// provider.NullEmbedder; documents are then stored without vectors.
func NewIngestService(docs DocumentWriter, embedder provider.Embedder, m *metrics.Metrics, logger *slog.Logger) *IngestService {
	if embedder == nil {
		embedder = provider.NullEmbedder{}
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		docs:     docs,
		embedder: embedder,
		metrics:  m,
		logger:   logger,
	}
}

// Apply processes one batch for a project. Malformed items are rejected
// individually; a storage failure aborts the whole batch with an error so
// the sender retries it.
func (s *IngestService) Apply(ctx context.Context, projectID string, items []IngestItem) ([]IngestResult, error) {
	results := make([]IngestResult, 0, len(items))
	for _, item := range items {
		result, err := s.applyItem(ctx, projectID, item)
		if err != nil {
			return nil, fmt.Errorf("apply %s/%s/%s: %w", item.SourceTable, item.RecordID, item.Language, err)
		}
		s.metrics.IngestItemsTotal.WithLabelValues(result.Status).Inc()
		results = append(results, result)
	}
	return results, nil
}

func (s *IngestService) applyItem(ctx context.Context, projectID string, item IngestItem) (IngestResult, error) {
	if reason := validateItem(item); reason != "" {
		return s.result(item, IngestStatusRejected, reason), nil
	}

	if item.Operation == event.OperationDelete {
		if _, err := s.docs.Delete(ctx, projectID, item.SourceTable, item.RecordID, item.Language); err != nil {
			return IngestResult{}, err
		}
		return s.result(item, IngestStatusDeleted, ""), nil
	}

	incoming := document.HashPayload(*item.Payload)
	if item.ContentHash != "" && item.ContentHash != incoming.String() {
		return s.result(item, IngestStatusRejected, "content hash does not match payload"), nil
	}

	stored, err := s.docs.ContentHash(ctx, projectID, item.SourceTable, item.RecordID, item.Language)
	if err != nil {
		return IngestResult{}, err
	}
	if !stored.IsZero() && stored == incoming {
		return s.result(item, IngestStatusSkipped, ""), nil
	}

	doc := document.NewDocument(projectID, item.SourceTable, item.RecordID, item.Language, *item.Payload)
	if embedding := s.embed(ctx, item.Payload.IndexableText()); embedding != nil {
		doc = doc.WithEmbedding(embedding)
	}

	if err := s.docs.Save(ctx, doc); err != nil {
		return IngestResult{}, err
	}
	return s.result(item, IngestStatusIndexed, ""), nil
}

// embed fetches a vector for the document text. Embedding is best effort:
// an unconfigured or failing provider degrades to lexical-only indexing
// rather than blocking ingestion.
func (s *IngestService) embed(ctx context.Context, text string) []float32 {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		if !errors.Is(err, provider.ErrNotConfigured) {
			s.logger.Warn("embedding failed, indexing without vector",
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	if len(vectors) != 1 {
		return nil
	}
	return vectors[0]
}

func (s *IngestService) result(item IngestItem, status, errMsg string) IngestResult {
	return IngestResult{
		SourceTable: item.SourceTable,
		RecordID:    item.RecordID,
		Language:    item.Language,
		Status:      status,
		Err:         errMsg,
	}
}

func validateItem(item IngestItem) string {
	switch {
	case item.SourceTable == "":
		return "source_table is required"
	case item.RecordID == "":
		return "record_id is required"
	case item.Language == "":
		return "language is required"
	}
	switch item.Operation {
	case event.OperationUpsert:
		if item.Payload == nil || item.Payload.IsEmpty() {
			return "upsert requires a payload"
		}
	case event.OperationDelete:
	default:
		return fmt.Sprintf("unknown operation %q", item.Operation)
	}
	return ""
}
