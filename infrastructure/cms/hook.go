// Package cms hosts the change detection hook that sits inside the CMS
// persistence path and feeds the synchronization queue.
package cms

import (
	"context"
	"log/slog"

	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/internal/config"
)

// EventSink accepts change events for asynchronous delivery. The
// coalescing queue implements it.
type EventSink interface {
	Submit(ctx context.Context, ev event.ChangeEvent) error
}

// Hook observes CMS persistence mutations and turns the relevant ones into
// change events. It runs synchronously inside the editor's save path, so it
// must stay cheap and must never surface an error back to the CMS.
type Hook struct {
	sources config.Sources
	sink    EventSink
	logger  *slog.Logger
}

// NewHook creates a Hook that filters mutations against the configured
// source allow-list and forwards the survivors to the sink.
func NewHook(sources config.Sources, sink EventSink, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{
		sources: sources,
		sink:    sink,
		logger:  logger,
	}
}

// Notify processes one CMS mutation. Mutations for tables outside the
// allow-list are dropped. Submission failures are logged and swallowed so
// an indexing outage can never break a content save.
func (h *Hook) Notify(ctx context.Context, m event.Mutation) {
	if !h.sources.Allows(m.ProjectID(), m.SourceTable()) {
		h.logger.Debug("mutation outside sync scope",
			slog.String("project_id", m.ProjectID()),
			slog.String("source_table", m.SourceTable()),
		)
		return
	}

	for _, ev := range m.Events() {
		if err := h.sink.Submit(ctx, ev); err != nil {
			h.logger.Error("failed to queue change event",
				slog.String("key", ev.Key().String()),
				slog.String("operation", string(ev.Operation())),
				slog.String("error", err.Error()),
			)
		}
	}
}
