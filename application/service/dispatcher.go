package service

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/infrastructure/metrics"
	"github.com/searchsync/searchsync/infrastructure/webhook"
	"github.com/searchsync/searchsync/internal/config"
)

// DeliveryClient posts batches of change events to the ingestion endpoint.
// webhook.Client implements it.
type DeliveryClient interface {
	Deliver(ctx context.Context, projectID string, events []event.ChangeEvent) ([]webhook.Ack, error)
}

// DeadLetterSink records events that exhausted their delivery attempts.
type DeadLetterSink interface {
	Append(ctx context.Context, dl event.DeadLetter) (event.DeadLetter, error)
}

// Dispatcher drains the coalescing queue and delivers change events to the
// remote indexing endpoint, retrying transient failures with exponential
// backoff and parking permanent failures in the dead letter store.
type Dispatcher struct {
	queue       *Queue
	client      DeliveryClient
	deadLetters DeadLetterSink

	drainTick     time.Duration
	batchSize     int
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64

	sleep   func(ctx context.Context, d time.Duration) error
	parked  atomic.Int64
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	queue *Queue,
	client DeliveryClient,
	deadLetters DeadLetterSink,
	remote config.RemoteConfig,
	queueCfg config.QueueConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Dispatcher {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:         queue,
		client:        client,
		deadLetters:   deadLetters,
		drainTick:     queueCfg.DrainTick(),
		batchSize:     remote.BatchSize(),
		maxRetries:    remote.MaxRetries(),
		initialDelay:  remote.InitialDelay(),
		backoffFactor: remote.BackoffFactor(),
		sleep:         sleepContext,
		metrics:       m,
		logger:        logger,
	}
}

// Run drains the queue on every tick until the context is cancelled, then
// flushes whatever is still buffered so shutdown loses nothing.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.drainTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.deliverByProject(context.Background(), d.queue.Flush())
			return ctx.Err()
		case now := <-ticker.C:
			d.deliverByProject(ctx, d.queue.Collect(now))
		}
	}
}

// DispatchPending delivers everything whose debounce window has elapsed.
// Exposed for the reindex command, which wants a synchronous drain.
func (d *Dispatcher) DispatchPending(ctx context.Context, now time.Time) {
	d.deliverByProject(ctx, d.queue.Collect(now))
}

// DeadLettered reports how many events this dispatcher has parked since it
// was created. One-shot commands read it to surface permanent delivery
// failures in their exit status.
func (d *Dispatcher) DeadLettered() int64 {
	return d.parked.Load()
}

// deliverByProject groups the events by project and delivers each project's
// events in bounded batches. A failing batch never blocks the others.
func (d *Dispatcher) deliverByProject(ctx context.Context, events []event.ChangeEvent) {
	if len(events) == 0 {
		return
	}

	byProject := make(map[string][]event.ChangeEvent)
	var order []string
	for _, ev := range events {
		pid := ev.Key().ProjectID()
		if _, seen := byProject[pid]; !seen {
			order = append(order, pid)
		}
		byProject[pid] = append(byProject[pid], ev)
	}

	for _, pid := range order {
		for _, batch := range chunkEvents(byProject[pid], d.batchSize) {
			d.deliverBatch(ctx, pid, batch)
		}
	}
}

// deliverBatch attempts one batch up to the configured attempt ceiling.
// Retryable failures back off exponentially with jitter; a terminal failure
// or an exhausted ceiling parks every event of the batch in the dead letter
// store.
func (d *Dispatcher) deliverBatch(ctx context.Context, projectID string, batch []event.ChangeEvent) {
	delay := d.initialDelay
	var lastErr error

	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			d.metrics.DeliveryRetriesTotal.Inc()
			if err := d.sleep(ctx, jitter(delay)); err != nil {
				lastErr = err
				break
			}
			delay = time.Duration(float64(delay) * d.backoffFactor)
		}

		for i := range batch {
			batch[i] = batch[i].WithAttempt()
		}

		start := time.Now()
		acks, err := d.client.Deliver(ctx, projectID, batch)
		d.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			d.metrics.DeliveriesTotal.WithLabelValues("accepted").Inc()
			d.parkRejected(ctx, batch, acks)
			return
		}

		lastErr = err
		if !webhook.IsRetryable(err) {
			d.metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
			d.logger.Error("delivery failed permanently",
				slog.String("project_id", projectID),
				slog.Int("events", len(batch)),
				slog.String("state", event.StateRejected.String()),
				slog.String("error", err.Error()),
			)
			d.parkAll(ctx, batch, err)
			return
		}

		d.metrics.DeliveriesTotal.WithLabelValues("retryable").Inc()
		d.logger.Warn("delivery failed, will retry",
			slog.String("project_id", projectID),
			slog.Int("attempt", attempt+1),
			slog.String("state", event.StateRetrying.String()),
			slog.String("error", err.Error()),
		)
	}

	d.logger.Error("delivery retries exhausted",
		slog.String("project_id", projectID),
		slog.Int("events", len(batch)),
		slog.String("state", event.StateDeadLettered.String()),
		slog.String("error", lastErr.Error()),
	)
	d.parkAll(ctx, batch, lastErr)
}

// parkRejected dead-letters the individual events the endpoint rejected
// while the rest of the batch was accepted.
func (d *Dispatcher) parkRejected(ctx context.Context, batch []event.ChangeEvent, acks []webhook.Ack) {
	rejected := make(map[string]webhook.Ack)
	for _, ack := range acks {
		if !ack.Accepted() {
			rejected[ack.Key.String()] = ack
		}
	}
	if len(rejected) == 0 {
		return
	}
	now := time.Now()
	for _, ev := range batch {
		ack, ok := rejected[ev.Key().String()]
		if !ok {
			continue
		}
		d.park(ctx, event.NewDeadLetter(ev, "rejected by endpoint: "+ack.Reason, now))
	}
}

func (d *Dispatcher) parkAll(ctx context.Context, batch []event.ChangeEvent, cause error) {
	now := time.Now()
	for _, ev := range batch {
		d.park(ctx, event.NewDeadLetter(ev, cause.Error(), now))
	}
}

func (d *Dispatcher) park(ctx context.Context, dl event.DeadLetter) {
	d.parked.Add(1)
	if _, err := d.deadLetters.Append(ctx, dl); err != nil {
		d.logger.Error("failed to dead-letter event",
			slog.String("key", dl.Event().Key().String()),
			slog.String("error", err.Error()),
		)
		return
	}
	d.metrics.DeadLettersTotal.Inc()
	d.logger.Warn("event dead-lettered",
		slog.String("key", dl.Event().Key().String()),
		slog.Int("attempts", dl.Event().Attempts()),
		slog.String("error", dl.LastError()),
	)
}

func chunkEvents(events []event.ChangeEvent, size int) [][]event.ChangeEvent {
	if size <= 0 {
		return [][]event.ChangeEvent{events}
	}
	var chunks [][]event.ChangeEvent
	for len(events) > size {
		chunks = append(chunks, events[:size])
		events = events[size:]
	}
	return append(chunks, events)
}

// jitter spreads a backoff delay by +-20% so synchronized failures do not
// retry in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	factor := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * factor)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
