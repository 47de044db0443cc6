package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/search"
	"github.com/searchsync/searchsync/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentStore persists indexed documents. Writes are idempotent upserts
// keyed on the composite document identity; vector search uses pgvector when
// available and in-memory cosine similarity otherwise.
type DocumentStore struct {
	db           database.Database
	dimension    int
	nativeVector bool
	logger       *slog.Logger
}

// NewDocumentStore creates a DocumentStore. nativeVector should be the
// result of EnsureVectorCapability.
func NewDocumentStore(db database.Database, dimension int, nativeVector bool, logger *slog.Logger) *DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{
		db:           db,
		dimension:    dimension,
		nativeVector: nativeVector,
		logger:       logger,
	}
}

// Save upserts a document on its composite identity. Re-saving identical
// content is harmless; the row is overwritten in place.
func (s *DocumentStore) Save(ctx context.Context, doc document.Document) error {
	if doc.HasEmbedding() && s.dimension > 0 && len(doc.Embedding()) != s.dimension {
		return fmt.Errorf("%w: document %s has %d, store expects %d",
			ErrDimensionMismatch, doc.ID(), len(doc.Embedding()), s.dimension)
	}

	model, err := documentToModel(doc)
	if err != nil {
		return err
	}

	// One transaction per document: concurrent upserts for different keys
	// never block each other, and a crash mid-write leaves no partial row.
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "body", "url", "metadata", "content_hash", "embedding", "updated_at",
			}),
		}).Create(&model).Error
	})
}

// Get loads a document by its composite identity. The second return value
// is false when no such document exists.
func (s *DocumentStore) Get(ctx context.Context, projectID, sourceTable, recordID, language string) (document.Document, bool, error) {
	var model DocumentModel
	err := s.db.Session(ctx).
		Where("project_id = ? AND source_table = ? AND record_id = ? AND language = ?",
			projectID, sourceTable, recordID, language).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return document.Document{}, false, nil
	}
	if err != nil {
		return document.Document{}, false, err
	}

	doc, err := documentFromModel(model)
	if err != nil {
		return document.Document{}, false, err
	}
	return doc, true, nil
}

// GetByID loads a document by its canonical identifier.
func (s *DocumentStore) GetByID(ctx context.Context, id string) (document.Document, bool, error) {
	var model DocumentModel
	err := s.db.Session(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return document.Document{}, false, nil
	}
	if err != nil {
		return document.Document{}, false, err
	}

	doc, err := documentFromModel(model)
	if err != nil {
		return document.Document{}, false, err
	}
	return doc, true, nil
}

// ContentHash returns the stored content hash for a composite identity, or
// the zero hash when the document does not exist. Used for no-op detection
// without loading the full row.
func (s *DocumentStore) ContentHash(ctx context.Context, projectID, sourceTable, recordID, language string) (document.ContentHash, error) {
	var hashes []string
	err := s.db.Session(ctx).
		Model(&DocumentModel{}).
		Where("project_id = ? AND source_table = ? AND record_id = ? AND language = ?",
			projectID, sourceTable, recordID, language).
		Pluck("content_hash", &hashes).Error
	if err != nil {
		return "", err
	}
	if len(hashes) == 0 {
		return "", nil
	}
	return document.ContentHash(hashes[0]), nil
}

// Delete removes a document by its composite identity. Deleting an absent
// document is not an error; the return value reports whether a row existed.
func (s *DocumentStore) Delete(ctx context.Context, projectID, sourceTable, recordID, language string) (bool, error) {
	result := s.db.Session(ctx).
		Where("project_id = ? AND source_table = ? AND record_id = ? AND language = ?",
			projectID, sourceTable, recordID, language).
		Delete(&DocumentModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Count returns the number of documents indexed for a project.
func (s *DocumentStore) Count(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := s.db.Session(ctx).
		Model(&DocumentModel{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

// SearchLexical performs keyword search over title and body. Candidates are
// narrowed in SQL with LIKE and scored in Go by term frequency, with title
// hits weighted double.
func (s *DocumentStore) SearchLexical(ctx context.Context, q search.Query) ([]search.Result, error) {
	terms := tokenize(q.Text())
	if len(terms) == 0 {
		return []search.Result{}, nil
	}

	session := applyFilters(s.db.Session(ctx).
		Model(&DocumentModel{}).
		Where("project_id = ?", q.ProjectID()), q.Filters())

	conds := make([]string, 0, len(terms))
	args := make([]any, 0, 2*len(terms))
	for _, term := range terms {
		pattern := "%" + term + "%"
		conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(body) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	var models []DocumentModel
	err := session.
		Where(strings.Join(conds, " OR "), args...).
		Select("id", "title", "body").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, len(models))
	for _, m := range models {
		score := lexicalScore(terms, m.Title, m.Body)
		if score > 0 {
			results = append(results, search.NewResult(m.ID, score))
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		return results[i].DocumentID() < results[j].DocumentID()
	})

	k := q.TopK()
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// SearchVector performs similarity search with the given query embedding.
// On PostgreSQL with pgvector it ranks in the database with the cosine
// operator; elsewhere it loads candidate vectors and ranks in memory.
func (s *DocumentStore) SearchVector(ctx context.Context, q search.Query, embedding []float32) ([]search.Result, error) {
	if len(embedding) == 0 {
		return []search.Result{}, nil
	}

	if s.nativeVector {
		return s.vectorSearchNative(ctx, q, embedding)
	}
	return s.vectorSearchInMemory(ctx, q, embedding)
}

// pgCosineSearchTemplate ranks by the pgvector cosine distance operator.
// Distance 0 means identical and 2 opposite; it is converted to a 0-1
// similarity after scanning.
const pgCosineSearchTemplate = `
SELECT id, embedding <=> ? AS score
FROM documents
WHERE project_id = ?
AND embedding IS NOT NULL
%s
ORDER BY score ASC
LIMIT ?`

func (s *DocumentStore) vectorSearchNative(ctx context.Context, q search.Query, embedding []float32) ([]search.Result, error) {
	limit := q.TopK()
	if limit <= 0 {
		limit = 10
	}

	queryVec := database.NewVector(embedding).String()
	args := []any{queryVec, q.ProjectID()}

	var filterSQL strings.Builder
	if langs := q.Filters().Languages(); len(langs) > 0 {
		filterSQL.WriteString("AND language IN ?\n")
		args = append(args, langs)
	}
	if tables := q.Filters().Tables(); len(tables) > 0 {
		filterSQL.WriteString("AND source_table IN ?\n")
		args = append(args, tables)
	}
	args = append(args, limit)

	var rows []struct {
		ID    string  `gorm:"column:id"`
		Score float64 `gorm:"column:score"`
	}
	sql := fmt.Sprintf(pgCosineSearchTemplate, filterSQL.String())
	if err := s.db.Session(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]search.Result, len(rows))
	for i, row := range rows {
		results[i] = search.NewResult(row.ID, 1.0-row.Score/2.0)
	}
	return results, nil
}

func (s *DocumentStore) vectorSearchInMemory(ctx context.Context, q search.Query, embedding []float32) ([]search.Result, error) {
	session := applyFilters(s.db.Session(ctx).
		Model(&DocumentModel{}).
		Where("project_id = ?", q.ProjectID()).
		Where("embedding IS NOT NULL AND embedding != ''"), q.Filters())

	var models []DocumentModel
	if err := session.Select("id", "embedding").Find(&models).Error; err != nil {
		return nil, err
	}

	vectors := make([]search.StoredVector, 0, len(models))
	for _, m := range models {
		floats := m.Embedding.Floats()
		if len(floats) == 0 {
			continue
		}
		vectors = append(vectors, search.NewStoredVector(m.ID, floats))
	}

	limit := q.TopK()
	if limit <= 0 {
		limit = 10
	}
	return search.TopKSimilar(embedding, vectors, limit), nil
}

func applyFilters(session *gorm.DB, f search.Filters) *gorm.DB {
	if langs := f.Languages(); len(langs) > 0 {
		session = session.Where("language IN ?", langs)
	}
	if tables := f.Tables(); len(tables) > 0 {
		session = session.Where("source_table IN ?", tables)
	}
	return session
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()[]{}`)
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

func lexicalScore(terms []string, title, body string) float64 {
	title = strings.ToLower(title)
	body = strings.ToLower(body)

	var score float64
	for _, term := range terms {
		score += 2 * float64(strings.Count(title, term))
		score += float64(strings.Count(body, term))
	}
	return score
}
