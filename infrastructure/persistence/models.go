package persistence

import (
	"time"

	"github.com/searchsync/searchsync/internal/database"
)

// DocumentModel represents an indexed document in the database.
type DocumentModel struct {
	ID          string          `gorm:"column:id;primaryKey;size:1024"`
	ProjectID   string          `gorm:"column:project_id;uniqueIndex:idx_documents_identity;index;size:255"`
	SourceTable string          `gorm:"column:source_table;uniqueIndex:idx_documents_identity;size:255"`
	RecordID    string          `gorm:"column:record_id;uniqueIndex:idx_documents_identity;size:255"`
	Language    string          `gorm:"column:language;uniqueIndex:idx_documents_identity;size:32"`
	Title       string          `gorm:"column:title;size:1024"`
	Body        string          `gorm:"column:body;type:text"`
	URL         string          `gorm:"column:url;size:1024"`
	Metadata    string          `gorm:"column:metadata;type:text"`
	ContentHash string          `gorm:"column:content_hash;index;size:64"`
	Embedding   database.Vector `gorm:"column:embedding;type:text"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (DocumentModel) TableName() string {
	return "documents"
}

// APIKeyModel represents a project API key in the database.
type APIKeyModel struct {
	KeyID      string     `gorm:"column:key_id;primaryKey;size:255"`
	ProjectID  string     `gorm:"column:project_id;index;size:255"`
	SecretHash string     `gorm:"column:secret_hash;size:64"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
}

// TableName returns the table name.
func (APIKeyModel) TableName() string {
	return "api_keys"
}

// DeadLetterModel represents a dead-lettered change event in the database.
type DeadLetterModel struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectID   string     `gorm:"column:project_id;index:idx_dead_letters_key;size:255"`
	SourceTable string     `gorm:"column:source_table;index:idx_dead_letters_key;size:255"`
	RecordID    string     `gorm:"column:record_id;index:idx_dead_letters_key;size:255"`
	Language    string     `gorm:"column:language;index:idx_dead_letters_key;size:32"`
	Operation   string     `gorm:"column:operation;size:32"`
	Payload     string     `gorm:"column:payload;type:text"`
	OccurredAt  time.Time  `gorm:"column:occurred_at"`
	Attempts    int        `gorm:"column:attempts"`
	LastError   string     `gorm:"column:last_error;type:text"`
	FailedAt    time.Time  `gorm:"column:failed_at;index"`
	ReplayedAt  *time.Time `gorm:"column:replayed_at"`
}

// TableName returns the table name.
func (DeadLetterModel) TableName() string {
	return "dead_letters"
}
