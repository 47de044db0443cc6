package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/searchsync/searchsync/domain/auth"
	"github.com/searchsync/searchsync/domain/document"
	"github.com/searchsync/searchsync/domain/event"
	"github.com/searchsync/searchsync/internal/database"
)

func documentToModel(doc document.Document) (DocumentModel, error) {
	payload := doc.Payload()

	meta := ""
	if m := payload.Metadata(); len(m) > 0 {
		raw, err := json.Marshal(m)
		if err != nil {
			return DocumentModel{}, fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(raw)
	}

	return DocumentModel{
		ID:          doc.ID(),
		ProjectID:   doc.ProjectID(),
		SourceTable: doc.SourceTable(),
		RecordID:    doc.RecordID(),
		Language:    doc.Language(),
		Title:       payload.Title(),
		Body:        payload.Body(),
		URL:         payload.URL(),
		Metadata:    meta,
		ContentHash: doc.ContentHash().String(),
		Embedding:   database.NewVector(doc.Embedding()),
		UpdatedAt:   doc.UpdatedAt(),
	}, nil
}

func documentFromModel(m DocumentModel) (document.Document, error) {
	var meta map[string]string
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &meta); err != nil {
			return document.Document{}, fmt.Errorf("unmarshal metadata for %s: %w", m.ID, err)
		}
	}

	payload := document.NewPayload(m.Title, m.Body, m.URL, m.Language, meta)
	return document.NewDocumentFull(
		m.ID,
		m.ProjectID,
		m.SourceTable,
		m.RecordID,
		m.Language,
		payload,
		m.Embedding.Floats(),
		document.ContentHash(m.ContentHash),
		m.UpdatedAt,
	), nil
}

func apiKeyToModel(key auth.APIKey) APIKeyModel {
	return APIKeyModel{
		KeyID:      key.KeyID(),
		ProjectID:  key.ProjectID(),
		SecretHash: key.SecretHash(),
		CreatedAt:  key.CreatedAt(),
		RevokedAt:  key.RevokedAt(),
	}
}

func apiKeyFromModel(m APIKeyModel) auth.APIKey {
	return auth.NewAPIKeyFull(m.KeyID, m.ProjectID, m.SecretHash, m.CreatedAt, m.RevokedAt)
}

func deadLetterToModel(dl event.DeadLetter) DeadLetterModel {
	ev := dl.Event()
	key := ev.Key()

	payload := ""
	if ev.Operation() == event.OperationUpsert {
		payload = string(ev.Payload().CanonicalJSON())
	}

	return DeadLetterModel{
		ID:          dl.ID(),
		ProjectID:   key.ProjectID(),
		SourceTable: key.SourceTable(),
		RecordID:    key.RecordID(),
		Language:    key.Language(),
		Operation:   string(ev.Operation()),
		Payload:     payload,
		OccurredAt:  ev.OccurredAt(),
		Attempts:    ev.Attempts(),
		LastError:   dl.LastError(),
		FailedAt:    dl.FailedAt(),
		ReplayedAt:  dl.ReplayedAt(),
	}
}

func deadLetterFromModel(m DeadLetterModel) (event.DeadLetter, error) {
	key := event.NewDocumentKey(m.ProjectID, m.SourceTable, m.RecordID, m.Language)

	var payload document.Payload
	if m.Payload != "" {
		var err error
		payload, err = document.PayloadFromCanonicalJSON([]byte(m.Payload))
		if err != nil {
			return event.DeadLetter{}, fmt.Errorf("decode payload for dead letter %d: %w", m.ID, err)
		}
	}

	ev := event.NewChangeEvent(key, event.Operation(m.Operation), m.OccurredAt, payload)
	for i := 0; i < m.Attempts; i++ {
		ev = ev.WithAttempt()
	}

	return event.NewDeadLetterFull(m.ID, ev, m.LastError, m.FailedAt, m.ReplayedAt), nil
}
