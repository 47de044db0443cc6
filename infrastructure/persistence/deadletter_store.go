package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/internal/database"
	"gorm.io/gorm"
)

// ErrDeadLetterNotFound indicates no dead letter exists with the given ID.
var ErrDeadLetterNotFound = errors.New("dead letter not found")

// DeadLetterStore persists change events whose delivery attempts were
// exhausted.
type DeadLetterStore struct {
	db database.Database
}

// NewDeadLetterStore creates a DeadLetterStore.
func NewDeadLetterStore(db database.Database) *DeadLetterStore {
	return &DeadLetterStore{db: db}
}

// Append stores a new dead letter and returns it with its assigned ID.
func (s *DeadLetterStore) Append(ctx context.Context, dl event.DeadLetter) (event.DeadLetter, error) {
	model := deadLetterToModel(dl)
	model.ID = 0
	if err := s.db.Session(ctx).Create(&model).Error; err != nil {
		return event.DeadLetter{}, err
	}
	return deadLetterFromModel(model)
}

// Get loads a dead letter by ID.
func (s *DeadLetterStore) Get(ctx context.Context, id int64) (event.DeadLetter, error) {
	var model DeadLetterModel
	err := s.db.Session(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return event.DeadLetter{}, ErrDeadLetterNotFound
	}
	if err != nil {
		return event.DeadLetter{}, err
	}
	return deadLetterFromModel(model)
}

// List returns dead letters, newest first. projectID narrows to one project
// when non-empty; includeReplayed controls whether already-replayed entries
// are returned.
func (s *DeadLetterStore) List(ctx context.Context, projectID string, includeReplayed bool, limit int) ([]event.DeadLetter, error) {
	session := s.db.Session(ctx).Model(&DeadLetterModel{})
	if projectID != "" {
		session = session.Where("project_id = ?", projectID)
	}
	if !includeReplayed {
		session = session.Where("replayed_at IS NULL")
	}
	if limit > 0 {
		session = session.Limit(limit)
	}

	var models []DeadLetterModel
	if err := session.Order("failed_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	letters := make([]event.DeadLetter, 0, len(models))
	for _, m := range models {
		dl, err := deadLetterFromModel(m)
		if err != nil {
			return nil, err
		}
		letters = append(letters, dl)
	}
	return letters, nil
}

// MarkReplayed records that a dead letter was re-submitted.
func (s *DeadLetterStore) MarkReplayed(ctx context.Context, id int64, at time.Time) error {
	at = at.UTC()
	result := s.db.Session(ctx).
		Model(&DeadLetterModel{}).
		Where("id = ?", id).
		Update("replayed_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeadLetterNotFound
	}
	return nil
}

// Delete removes a dead letter.
func (s *DeadLetterStore) Delete(ctx context.Context, id int64) error {
	result := s.db.Session(ctx).Where("id = ?", id).Delete(&DeadLetterModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeadLetterNotFound
	}
	return nil
}
