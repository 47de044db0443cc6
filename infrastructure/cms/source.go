package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/searchsync/searchsync/application/service"
	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/internal/database"
)

// contentRow is the conventional shape of an indexable content table. The
// CMS is expected to expose one such table (or view) per allow-listed
// source table, denormalized to exactly the fields the index consumes.
type contentRow struct {
	ID       string `gorm:"column:id"`
	Title    string `gorm:"column:title"`
	Body     string `gorm:"column:body"`
	URL      string `gorm:"column:url"`
	Language string `gorm:"column:language"`
	Metadata string `gorm:"column:metadata"`
}

// TableSource enumerates CMS content straight from the database, one
// allow-listed table at a time. It backs the reindex command.
type TableSource struct {
	db              database.Database
	defaultLanguage string
	logger          *slog.Logger
}

// NewTableSource creates a TableSource reading from db. Rows without a
// language column value are attributed to defaultLanguage.
func NewTableSource(db database.Database, defaultLanguage string, logger *slog.Logger) *TableSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &TableSource{db: db, defaultLanguage: defaultLanguage, logger: logger}
}

// FetchBatch returns up to limit records from the given table starting at
// offset, ordered by record id. Language variants of the same record id
// fold into one SourceRecord.
func (s *TableSource) FetchBatch(ctx context.Context, projectID, table string, offset, limit int) ([]service.SourceRecord, error) {
	var rows []contentRow
	err := s.db.Session(ctx).
		Table(table).
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch %s rows for project %s: %w", table, projectID, err)
	}

	records := make([]service.SourceRecord, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		language := row.Language
		if language == "" {
			language = s.defaultLanguage
		}
		payload := document.NewPayload(row.Title, row.Body, row.URL, language, s.parseMetadata(table, row))

		i, ok := index[row.ID]
		if !ok {
			records = append(records, service.SourceRecord{
				RecordID: row.ID,
				Payloads: map[string]document.Payload{},
			})
			i = len(records) - 1
			index[row.ID] = i
		}
		records[i].Payloads[language] = payload
	}
	return records, nil
}

// parseMetadata decodes the metadata column, a JSON object of string
// values. A malformed value loses the metadata but never the record.
func (s *TableSource) parseMetadata(table string, row contentRow) map[string]string {
	if row.Metadata == "" {
		return nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(row.Metadata), &metadata); err != nil {
		s.logger.Warn("skipping malformed metadata",
			slog.String("table", table),
			slog.String("record_id", row.ID),
			slog.Any("error", err))
		return nil
	}
	return metadata
}
