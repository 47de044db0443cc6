package cms

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchsync/searchsync/internal/database"
)

func newSourceDB(t *testing.T) database.Database {
	t.Helper()
	url := "sqlite:///" + filepath.Join(t.TempDir(), "cms.db")
	db, err := database.NewDatabase(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Session(ctx).Exec(
		`CREATE TABLE pages (id TEXT, title TEXT, body TEXT, url TEXT, language TEXT, metadata TEXT)`,
	).Error)
	return db
}

func insertPage(t *testing.T, db database.Database, id, title, language, metadata string) {
	t.Helper()
	err := db.Session(context.Background()).Exec(
		`INSERT INTO pages (id, title, body, url, language, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
		id, title, title+" body", "/"+id, language, metadata,
	).Error
	require.NoError(t, err)
}

func TestTableSourceFetchBatch(t *testing.T) {
	db := newSourceDB(t)
	insertPage(t, db, "1", "Home", "en", "")
	insertPage(t, db, "2", "About", "en", `{"section":"company"}`)

	source := NewTableSource(db, "en", nil)
	records, err := source.FetchBatch(context.Background(), "demo", "pages", 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "1", records[0].RecordID)
	assert.Equal(t, "Home", records[0].Payloads["en"].Title())
	assert.Equal(t, "/2", records[1].Payloads["en"].URL())
	assert.Equal(t, map[string]string{"section": "company"}, records[1].Payloads["en"].Metadata())
}

func TestTableSourceFoldsLanguageVariants(t *testing.T) {
	db := newSourceDB(t)
	insertPage(t, db, "7", "Hello", "en", "")
	insertPage(t, db, "7", "Hallo", "de", "")

	source := NewTableSource(db, "en", nil)
	records, err := source.FetchBatch(context.Background(), "demo", "pages", 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Hello", records[0].Payloads["en"].Title())
	assert.Equal(t, "Hallo", records[0].Payloads["de"].Title())
}

func TestTableSourceDefaultsLanguage(t *testing.T) {
	db := newSourceDB(t)
	insertPage(t, db, "3", "Untagged", "", "")

	source := NewTableSource(db, "fr", nil)
	records, err := source.FetchBatch(context.Background(), "demo", "pages", 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Untagged", records[0].Payloads["fr"].Title())
	assert.Equal(t, "fr", records[0].Payloads["fr"].Language())
}

func TestTableSourcePaginates(t *testing.T) {
	db := newSourceDB(t)
	insertPage(t, db, "a", "A", "en", "")
	insertPage(t, db, "b", "B", "en", "")
	insertPage(t, db, "c", "C", "en", "")

	source := NewTableSource(db, "en", nil)
	ctx := context.Background()

	first, err := source.FetchBatch(ctx, "demo", "pages", 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := source.FetchBatch(ctx, "demo", "pages", 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].RecordID)

	third, err := source.FetchBatch(ctx, "demo", "pages", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestTableSourceMalformedMetadataKeepsRecord(t *testing.T) {
	db := newSourceDB(t)
	insertPage(t, db, "9", "Broken", "en", "{not json")

	source := NewTableSource(db, "en", nil)
	records, err := source.FetchBatch(context.Background(), "demo", "pages", 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Payloads["en"].Metadata())
}

func TestTableSourceMissingTableFails(t *testing.T) {
	db := newSourceDB(t)
	source := NewTableSource(db, "en", nil)
	_, err := source.FetchBatch(context.Background(), "demo", "articles", 0, 10)
	assert.Error(t, err)
}
