package event

import "fmt"

// DocumentKey identifies one indexable record: a project, a source table,
// a record ID within that table, and a language variant. At most one pending
// ChangeEvent exists per key; the key is also the identity of the stored
// document on the indexing side.
type DocumentKey struct {
	projectID   string
	sourceTable string
	recordID    string
	language    string
}

// NewDocumentKey creates a DocumentKey.
func NewDocumentKey(projectID, sourceTable, recordID, language string) DocumentKey {
	return DocumentKey{
		projectID:   projectID,
		sourceTable: sourceTable,
		recordID:    recordID,
		language:    language,
	}
}

// ProjectID returns the project identifier.
func (k DocumentKey) ProjectID() string { return k.projectID }

// SourceTable returns the CMS content table name.
func (k DocumentKey) SourceTable() string { return k.sourceTable }

// RecordID returns the record identifier within the source table.
func (k DocumentKey) RecordID() string { return k.recordID }

// Language returns the language variant.
func (k DocumentKey) Language() string { return k.language }

// IsZero returns true if no fields are set.
func (k DocumentKey) IsZero() bool {
	return k == DocumentKey{}
}

// String returns the canonical "project/table/record/language" form used for
// coalescing maps and document identifiers.
func (k DocumentKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.projectID, k.sourceTable, k.recordID, k.language)
}
