package document

import "time"

// Document is the durable, queryable representation of one CMS record in the
// search index. It is created and mutated only by the ingestion endpoint.
type Document struct {
	id          string
	projectID   string
	sourceTable string
	recordID    string
	language    string
	payload     Payload
	embedding   []float32
	contentHash ContentHash
	updatedAt   time.Time
}

// NewDocument creates a Document from its composite identity and payload.
// The id is the canonical "project/table/record/language" form.
func NewDocument(projectID, sourceTable, recordID, language string, payload Payload) Document {
	return Document{
		id:          projectID + "/" + sourceTable + "/" + recordID + "/" + language,
		projectID:   projectID,
		sourceTable: sourceTable,
		recordID:    recordID,
		language:    language,
		payload:     payload,
		contentHash: HashPayload(payload),
	}
}

// NewDocumentFull creates a Document with all fields (used by the store).
func NewDocumentFull(
	id, projectID, sourceTable, recordID, language string,
	payload Payload,
	embedding []float32,
	contentHash ContentHash,
	updatedAt time.Time,
) Document {
	return Document{
		id:          id,
		projectID:   projectID,
		sourceTable: sourceTable,
		recordID:    recordID,
		language:    language,
		payload:     payload,
		embedding:   copyEmbedding(embedding),
		contentHash: contentHash,
		updatedAt:   updatedAt,
	}
}

// ID returns the composite document identifier.
func (d Document) ID() string { return d.id }

// ProjectID returns the owning project.
func (d Document) ProjectID() string { return d.projectID }

// SourceTable returns the CMS content table the record came from.
func (d Document) SourceTable() string { return d.sourceTable }

// RecordID returns the CMS record identifier.
func (d Document) RecordID() string { return d.recordID }

// Language returns the language variant.
func (d Document) Language() string { return d.language }

// Payload returns the indexed content fields.
func (d Document) Payload() Payload { return d.payload }

// Embedding returns a copy of the vector embedding, or nil when the document
// was stored without one (lexical-only deployments).
func (d Document) Embedding() []float32 { return copyEmbedding(d.embedding) }

// HasEmbedding reports whether a vector embedding is stored.
func (d Document) HasEmbedding() bool { return len(d.embedding) > 0 }

// ContentHash returns the payload digest used for no-op detection.
func (d Document) ContentHash() ContentHash { return d.contentHash }

// UpdatedAt returns when the document was last written.
func (d Document) UpdatedAt() time.Time { return d.updatedAt }

// WithEmbedding returns a copy of the document with the given vector.
func (d Document) WithEmbedding(embedding []float32) Document {
	d.embedding = copyEmbedding(embedding)
	return d
}

func copyEmbedding(embedding []float32) []float32 {
	if embedding == nil {
		return nil
	}
	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	return cp
}
