// Package persistence provides database storage implementations.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/searchsync/searchsync/internal/database"
	"gorm.io/gorm"
)

// SQL specific to pgvector (extension, column, index, catalog).
const (
	pgvCreateExtension = `CREATE EXTENSION IF NOT EXISTS vector`

	pgvAlterColumnTemplate = `
ALTER TABLE documents
ALTER COLUMN embedding TYPE vector(%d)
USING NULLIF(embedding, '')::vector(%d)`

	pgvCreateIndex = `
CREATE INDEX IF NOT EXISTS documents_embedding_idx
ON documents
USING ivfflat (embedding vector_cosine_ops)
WITH (lists = 100)`

	pgvCheckDimension = `
SELECT a.atttypmod AS dimension
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
WHERE c.relname = 'documents'
AND a.attname = 'embedding'
AND a.atttypmod > 0`
)

// ErrDimensionMismatch indicates the stored vector dimension differs from
// the configured embedding dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// AutoMigrate runs GORM auto migration for all models.
func AutoMigrate(db database.Database) error {
	return db.Session(context.Background()).AutoMigrate(
		&DocumentModel{},
		&APIKeyModel{},
		&DeadLetterModel{},
	)
}

// EnsureVectorCapability prepares native vector search on PostgreSQL: it
// creates the pgvector extension, converts the embedding column to a typed
// vector, builds a cosine index, and verifies the dimension. Returns whether
// native vector search is available. A missing extension is not fatal; the
// store falls back to in-memory similarity and the caller gets a warning log.
// A dimension conflict with existing data is fatal.
func EnsureVectorCapability(ctx context.Context, db database.Database, dimension int, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !db.IsPostgres() {
		return false, nil
	}
	if dimension <= 0 {
		logger.Info("no embedding dimension configured, skipping vector column setup")
		return false, nil
	}

	session := db.Session(ctx)

	if err := session.Exec(pgvCreateExtension).Error; err != nil {
		logger.Warn("pgvector extension unavailable, vector search falls back to in-memory similarity", "error", err)
		return false, nil
	}

	// Existing typed column: only the dimension needs checking.
	var dbDimension int
	result := session.Raw(pgvCheckDimension).Scan(&dbDimension)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("check embedding dimension: %w", result.Error)
	}
	if result.RowsAffected > 0 && dbDimension > 0 {
		if dbDimension != dimension {
			return false, fmt.Errorf("%w: database has %d, provider has %d", ErrDimensionMismatch, dbDimension, dimension)
		}
	} else {
		alterSQL := fmt.Sprintf(pgvAlterColumnTemplate, dimension, dimension)
		if err := session.Exec(alterSQL).Error; err != nil {
			return false, fmt.Errorf("convert embedding column: %w", err)
		}
	}

	if err := session.Exec(pgvCreateIndex).Error; err != nil {
		logger.Warn("failed to create embedding index (may already exist)", "error", err)
	}

	return true, nil
}
