package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/infrastructure/metrics"
	"github.com/searchsync/searchsync/internal/config"
)

// pendingEntry is one coalesced slot in the queue: the surviving event for a
// document key and the moment its debounce window elapses.
type pendingEntry struct {
	event   event.ChangeEvent
	readyAt time.Time
}

// Queue buffers change events between the CMS hook and the dispatcher. It
// holds at most one event per document key: a newer event for the same key
// supersedes the pending one while keeping the debounce window anchored at
// the first dirty mark, so a burst of editor saves collapses into a single
// delivery of the final state without deferring it indefinitely.
type Queue struct {
	mu      sync.Mutex
	pending map[event.DocumentKey]pendingEntry
	closed  bool

	delay   time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewQueue creates a Queue with the configured debounce window.
func NewQueue(cfg config.QueueConfig, m *metrics.Metrics, logger *slog.Logger) *Queue {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		pending: make(map[event.DocumentKey]pendingEntry),
		delay:   cfg.DebounceDelay(),
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}
}

// Submit adds a change event. If an event for the same document key is
// already pending the two are resolved to the one reflecting the final
// state. The debounce window runs from the first dirty mark, so a hot key
// still reaches the index within a bounded delay.
func (q *Queue) Submit(_ context.Context, ev event.ChangeEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	key := ev.Key()
	readyAt := q.now().Add(q.delay)
	if existing, ok := q.pending[key]; ok {
		ev = event.Supersede(existing.event, ev)
		readyAt = existing.readyAt
		q.metrics.EventsCoalescedTotal.WithLabelValues(string(ev.Operation())).Inc()
	} else {
		q.metrics.QueueDepth.Inc()
	}
	q.pending[key] = pendingEntry{event: ev, readyAt: readyAt}
	q.metrics.EventsQueuedTotal.WithLabelValues(string(ev.Operation())).Inc()

	q.logger.Debug("change event queued",
		slog.String("key", key.String()),
		slog.String("operation", string(ev.Operation())),
	)
	return nil
}

// Collect removes and returns every event whose debounce window has elapsed,
// ordered by occurrence time. Each document key appears at most once.
func (q *Queue) Collect(now time.Time) []event.ChangeEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []event.ChangeEvent
	for key, entry := range q.pending {
		if entry.readyAt.After(now) {
			continue
		}
		ready = append(ready, entry.event)
		delete(q.pending, key)
	}
	q.metrics.QueueDepth.Sub(float64(len(ready)))
	sortByOccurrence(ready)
	return ready
}

// Flush removes and returns every pending event regardless of debounce
// state. Used on shutdown so buffered changes are not lost.
func (q *Queue) Flush() []event.ChangeEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	all := make([]event.ChangeEvent, 0, len(q.pending))
	for key, entry := range q.pending {
		all = append(all, entry.event)
		delete(q.pending, key)
	}
	q.metrics.QueueDepth.Sub(float64(len(all)))
	sortByOccurrence(all)
	return all
}

// Len returns the number of pending document keys.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the queue from accepting new events. Pending events remain
// collectable so a final Flush can drain them.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func sortByOccurrence(events []event.ChangeEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].OccurredAt().Equal(events[j].OccurredAt()) {
			return events[i].Key().String() < events[j].Key().String()
		}
		return events[i].OccurredAt().Before(events[j].OccurredAt())
	})
}
