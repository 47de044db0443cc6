package event

import (
	"time"

	"github.com/searchsync/searchsync/domain/document"
)

// MutationKind classifies a CMS persistence operation.
type MutationKind string

// MutationKind values.
const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
	MutationTrash  MutationKind = "trash"
	MutationMove   MutationKind = "move"
	MutationCopy   MutationKind = "copy"
)

// Operation maps the mutation kind to the index operation: deletes and
// trashing remove the document, everything else re-indexes it.
func (k MutationKind) Operation() Operation {
	switch k {
	case MutationDelete, MutationTrash:
		return OperationDelete
	default:
		return OperationUpsert
	}
}

// Mutation is the structured change data the CMS hands to the change
// detection hook, synchronously within its persistence path. It carries one
// payload per affected language variant; move and copy operations typically
// affect several.
type Mutation struct {
	projectID   string
	sourceTable string
	recordID    string
	kind        MutationKind
	occurredAt  time.Time
	payloads    map[string]document.Payload
}

// NewMutation creates a Mutation. payloads maps language to the denormalized
// content fields for that variant; for deletes the payloads may carry only
// the language keys.
func NewMutation(
	projectID, sourceTable, recordID string,
	kind MutationKind,
	occurredAt time.Time,
	payloads map[string]document.Payload,
) Mutation {
	cp := make(map[string]document.Payload, len(payloads))
	for lang, p := range payloads {
		cp[lang] = p
	}
	return Mutation{
		projectID:   projectID,
		sourceTable: sourceTable,
		recordID:    recordID,
		kind:        kind,
		occurredAt:  occurredAt.UTC(),
		payloads:    cp,
	}
}

// ProjectID returns the project identifier.
func (m Mutation) ProjectID() string { return m.projectID }

// SourceTable returns the content table the mutation touched.
func (m Mutation) SourceTable() string { return m.sourceTable }

// RecordID returns the mutated record's identifier.
func (m Mutation) RecordID() string { return m.recordID }

// Kind returns the mutation classification.
func (m Mutation) Kind() MutationKind { return m.kind }

// OccurredAt returns when the mutation happened.
func (m Mutation) OccurredAt() time.Time { return m.occurredAt }

// Languages returns the affected language variants.
func (m Mutation) Languages() []string {
	langs := make([]string, 0, len(m.payloads))
	for lang := range m.payloads {
		langs = append(langs, lang)
	}
	return langs
}

// Events expands the mutation into one ChangeEvent per affected language.
func (m Mutation) Events() []ChangeEvent {
	op := m.kind.Operation()
	events := make([]ChangeEvent, 0, len(m.payloads))
	for lang, payload := range m.payloads {
		key := NewDocumentKey(m.projectID, m.sourceTable, m.recordID, lang)
		if op == OperationDelete {
			events = append(events, NewChangeEvent(key, OperationDelete, m.occurredAt, document.Payload{}))
			continue
		}
		events = append(events, NewChangeEvent(key, OperationUpsert, m.occurredAt, payload))
	}
	return events
}
