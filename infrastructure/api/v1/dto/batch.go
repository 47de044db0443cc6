// Package dto defines the wire types shared by the ingestion API and the
// dispatcher's delivery client.
package dto

import "time"

// Item statuses reported by the ingestion endpoint.
const (
	StatusIndexed  = "indexed"
	StatusDeleted  = "deleted"
	StatusSkipped  = "skipped"
	StatusRejected = "rejected"
)

// BatchRequest is the body of POST /api/v1/index/{project_id}/batch.
type BatchRequest struct {
	Items []BatchItem `json:"items"`
}

// BatchItem carries one change event. Payload is nil for deletes.
type BatchItem struct {
	SourceTable string      `json:"source_table"`
	RecordID    string      `json:"record_id"`
	Language    string      `json:"language"`
	Operation   string      `json:"operation"`
	OccurredAt  time.Time   `json:"occurred_at"`
	ContentHash string      `json:"content_hash,omitempty"`
	Payload     *PayloadDTO `json:"payload,omitempty"`
}

// PayloadDTO carries the denormalized content fields of one record.
type PayloadDTO struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// BatchResponse reports the per-item outcome of a batch.
type BatchResponse struct {
	Results []ItemResult `json:"results"`
}

// ItemResult is the acknowledgement for one batch item.
type ItemResult struct {
	SourceTable string `json:"source_table"`
	RecordID    string `json:"record_id"`
	Language    string `json:"language"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}
