package persistence

import (
	"context"
	"errors"

	"github.com/searchsync/searchsync/domain/auth"
	"github.com/searchsync/searchsync/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAPIKeyNotFound indicates no API key exists for the given key ID.
var ErrAPIKeyNotFound = errors.New("api key not found")

// APIKeyStore persists project API keys.
type APIKeyStore struct {
	db database.Database
}

// NewAPIKeyStore creates an APIKeyStore.
func NewAPIKeyStore(db database.Database) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// Save upserts an API key on its key ID.
func (s *APIKeyStore) Save(ctx context.Context, key auth.APIKey) error {
	model := apiKeyToModel(key)
	return s.db.Session(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"project_id", "secret_hash", "revoked_at"}),
	}).Create(&model).Error
}

// FindByKeyID loads an API key by its public identifier.
func (s *APIKeyStore) FindByKeyID(ctx context.Context, keyID string) (auth.APIKey, error) {
	var model APIKeyModel
	err := s.db.Session(ctx).Where("key_id = ?", keyID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return auth.APIKey{}, ErrAPIKeyNotFound
	}
	if err != nil {
		return auth.APIKey{}, err
	}
	return apiKeyFromModel(model), nil
}

// ListByProject returns all keys provisioned for a project.
func (s *APIKeyStore) ListByProject(ctx context.Context, projectID string) ([]auth.APIKey, error) {
	var models []APIKeyModel
	err := s.db.Session(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	keys := make([]auth.APIKey, len(models))
	for i, m := range models {
		keys[i] = apiKeyFromModel(m)
	}
	return keys, nil
}
