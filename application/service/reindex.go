package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/internal/config"
)

// reindexBatchSize is how many records one fetch pulls from the CMS.
const reindexBatchSize = 100

// SourceRecord is one CMS record with its language variants, as read back
// during a full reindex.
type SourceRecord struct {
	RecordID string
	Payloads map[string]document.Payload
}

// ContentSource reads records straight from the CMS content tables. The
// reindex command walks it table by table.
type ContentSource interface {
	// FetchBatch returns up to limit records starting at offset, in a
	// stable order. An empty slice means the table is exhausted.
	FetchBatch(ctx context.Context, projectID, table string, offset, limit int) ([]SourceRecord, error)
}

// ReindexReport summarizes one reindex run.
type ReindexReport struct {
	Tables  int
	Records int64
	Queued  int64
	Failed  int64
}

// ReindexService replays a project's full content set through the normal
// synchronization pipeline. Unchanged documents are dropped downstream by
// the content hash check, so a reindex is safe to run at any time.
type ReindexService struct {
	source      ContentSource
	sink        EventSink
	sources     config.Sources
	concurrency int
	logger      *slog.Logger
}

// EventSink accepts change events for delivery. The coalescing queue
// implements it.
type EventSink interface {
	Submit(ctx context.Context, ev event.ChangeEvent) error
}

// NewReindexService creates a ReindexService.
func NewReindexService(source ContentSource, sink EventSink, sources config.Sources, concurrency int, logger *slog.Logger) *ReindexService {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReindexService{
		source:      source,
		sink:        sink,
		sources:     sources,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Reindex enqueues an upsert for every record of every allow-listed table
// of the project. Tables are processed concurrently up to the configured
// bound. The returned error is non-nil when any table failed permanently;
// the report still covers the work that succeeded.
func (s *ReindexService) Reindex(ctx context.Context, projectID string) (ReindexReport, error) {
	tables := s.sources.Tables(projectID)
	if len(tables) == 0 {
		return ReindexReport{}, fmt.Errorf("%w: project %q has no configured source tables", ErrValidation, projectID)
	}

	var records, queued, failed atomic.Int64

	// Tables fail independently; one broken table must not cancel the rest,
	// so the group carries no shared context.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, table := range tables {
		g.Go(func() error {
			n, q, err := s.reindexTable(ctx, projectID, table)
			records.Add(n)
			queued.Add(q)
			if err != nil {
				failed.Add(1)
				return fmt.Errorf("table %s: %w", table, err)
			}
			return nil
		})
	}
	err := g.Wait()

	report := ReindexReport{
		Tables:  len(tables),
		Records: records.Load(),
		Queued:  queued.Load(),
		Failed:  failed.Load(),
	}
	s.logger.Info("reindex finished",
		slog.String("project_id", projectID),
		slog.Int("tables", report.Tables),
		slog.Int64("records", report.Records),
		slog.Int64("queued", report.Queued),
		slog.Int64("failed_tables", report.Failed),
	)
	return report, err
}

func nowUTC() time.Time { return time.Now().UTC() }

// reindexTable walks one table in fetch batches, checking for cancellation
// between batches so a shutdown never stalls mid-table.
func (s *ReindexService) reindexTable(ctx context.Context, projectID, table string) (records, queued int64, err error) {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return records, queued, err
		}

		batch, err := s.source.FetchBatch(ctx, projectID, table, offset, reindexBatchSize)
		if err != nil {
			return records, queued, fmt.Errorf("fetch offset %d: %w", offset, err)
		}
		if len(batch) == 0 {
			return records, queued, nil
		}

		for _, rec := range batch {
			records++
			m := event.NewMutation(projectID, table, rec.RecordID, event.MutationUpdate, nowUTC(), rec.Payloads)
			for _, ev := range m.Events() {
				if err := s.sink.Submit(ctx, ev); err != nil {
					return records, queued, fmt.Errorf("queue record %s: %w", rec.RecordID, err)
				}
				queued++
			}
		}

		s.logger.Debug("reindex batch queued",
			slog.String("project_id", projectID),
			slog.String("table", table),
			slog.Int("offset", offset),
			slog.Int("size", len(batch)),
		)
		offset += len(batch)
	}
}
