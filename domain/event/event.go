// Package event provides change-notification domain types for the
// CMS-to-index synchronization pipeline.
package event

import (
	"time"

	"github.com/searchsync/searchsync/domain/document"
)

// ChangeEvent represents one pending synchronization unit: a record whose
// indexable content changed or was removed. At most one event per DocumentKey
// is pending at a time; newer events supersede older ones for the same key.
type ChangeEvent struct {
	key        DocumentKey
	operation  Operation
	occurredAt time.Time
	payload    document.Payload
	attempts   int
}

// NewChangeEvent creates a ChangeEvent.
func NewChangeEvent(key DocumentKey, operation Operation, occurredAt time.Time, payload document.Payload) ChangeEvent {
	return ChangeEvent{
		key:        key,
		operation:  operation,
		occurredAt: occurredAt.UTC(),
		payload:    payload,
	}
}

// NewUpsert creates an upsert ChangeEvent occurring now.
func NewUpsert(key DocumentKey, payload document.Payload) ChangeEvent {
	return NewChangeEvent(key, OperationUpsert, time.Now(), payload)
}

// NewDelete creates a delete ChangeEvent occurring now. Deletes carry no
// payload; the key alone identifies the document to remove.
func NewDelete(key DocumentKey) ChangeEvent {
	return NewChangeEvent(key, OperationDelete, time.Now(), document.Payload{})
}

// Key returns the composite document key.
func (e ChangeEvent) Key() DocumentKey { return e.key }

// Operation returns the operation.
func (e ChangeEvent) Operation() Operation { return e.operation }

// OccurredAt returns when the mutation happened in the CMS.
func (e ChangeEvent) OccurredAt() time.Time { return e.occurredAt }

// Payload returns the denormalized content fields. Empty for deletes.
func (e ChangeEvent) Payload() document.Payload { return e.payload }

// ContentHash returns the digest of the payload. Zero for deletes.
func (e ChangeEvent) ContentHash() document.ContentHash {
	if e.operation == OperationDelete {
		return ""
	}
	return document.HashPayload(e.payload)
}

// Attempts returns how many delivery attempts have been made.
func (e ChangeEvent) Attempts() int { return e.attempts }

// WithAttempt returns a copy of the event with the attempt counter bumped.
func (e ChangeEvent) WithAttempt() ChangeEvent {
	e.attempts++
	return e
}

// Supersede resolves two events for the same key into the one that should
// remain pending: last write wins by occurredAt, with ties going to the
// newer submission. A later delete discards any pending upsert and a later
// upsert discards a pending delete. The index only ever converges on the
// final state.
func Supersede(pending, incoming ChangeEvent) ChangeEvent {
	if incoming.occurredAt.Before(pending.occurredAt) {
		return pending
	}
	return incoming
}
