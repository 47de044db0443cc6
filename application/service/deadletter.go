package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/infrastructure/persistence"
)

// DeadLetterReader is the dead letter persistence surface the service uses.
type DeadLetterReader interface {
	Get(ctx context.Context, id int64) (event.DeadLetter, error)
	List(ctx context.Context, projectID string, includeReplayed bool, limit int) ([]event.DeadLetter, error)
	MarkReplayed(ctx context.Context, id int64, at time.Time) error
}

// DeadLetterService inspects and replays parked deliveries.
type DeadLetterService struct {
	store  DeadLetterReader
	sink   EventSink
	logger *slog.Logger
}

// NewDeadLetterService creates a DeadLetterService.
func NewDeadLetterService(store DeadLetterReader, sink EventSink, logger *slog.Logger) *DeadLetterService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadLetterService{
		store:  store,
		sink:   sink,
		logger: logger,
	}
}

// List returns a project's dead letters, newest failures first.
func (s *DeadLetterService) List(ctx context.Context, projectID string, includeReplayed bool, limit int) ([]event.DeadLetter, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project is required", ErrValidation)
	}
	return s.store.List(ctx, projectID, includeReplayed, limit)
}

// Replay re-enqueues a dead-lettered event through the normal pipeline and
// marks it replayed. A non-empty projectID restricts the lookup to that
// project's dead letters. Replaying twice is rejected; operators park a
// fresh dead letter if the replay fails again. Without a sink there is no
// dispatcher draining the queue, so the replay is refused rather than
// letting the event vanish with the process while marked replayed.
func (s *DeadLetterService) Replay(ctx context.Context, projectID string, id int64) (event.DeadLetter, error) {
	if s.sink == nil {
		return event.DeadLetter{}, fmt.Errorf("%w: replay requires a configured delivery remote", ErrValidation)
	}

	dl, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrDeadLetterNotFound) {
			return event.DeadLetter{}, fmt.Errorf("%w: dead letter %d", ErrNotFound, id)
		}
		return event.DeadLetter{}, err
	}
	if projectID != "" && dl.Event().Key().ProjectID() != projectID {
		return event.DeadLetter{}, fmt.Errorf("%w: dead letter %d", ErrNotFound, id)
	}
	if dl.IsReplayed() {
		return event.DeadLetter{}, fmt.Errorf("%w: dead letter %d already replayed", ErrValidation, id)
	}

	if err := s.sink.Submit(ctx, dl.Event()); err != nil {
		return event.DeadLetter{}, fmt.Errorf("requeue dead letter %d: %w", id, err)
	}

	now := time.Now().UTC()
	if err := s.store.MarkReplayed(ctx, id, now); err != nil {
		return event.DeadLetter{}, err
	}

	s.logger.Info("dead letter replayed",
		slog.Int64("id", id),
		slog.String("key", dl.Event().Key().String()),
	)
	return dl.Replay(now), nil
}
