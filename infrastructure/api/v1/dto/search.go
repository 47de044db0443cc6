package dto

// SearchRequest is the body of POST /api/v1/search/{project_id}.
type SearchRequest struct {
	Query     string   `json:"query"`
	Languages []string `json:"languages,omitempty"`
	Tables    []string `json:"tables,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// SearchHitAttributes are the attributes of one search result resource.
type SearchHitAttributes struct {
	ProjectID   string            `json:"project_id"`
	SourceTable string            `json:"source_table"`
	RecordID    string            `json:"record_id"`
	Language    string            `json:"language"`
	Title       string            `json:"title"`
	Snippet     string            `json:"snippet"`
	URL         string            `json:"url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Score       float64           `json:"score"`
}

// DeadLetterAttributes are the attributes of one dead letter resource.
type DeadLetterAttributes struct {
	ProjectID   string `json:"project_id"`
	SourceTable string `json:"source_table"`
	RecordID    string `json:"record_id"`
	Language    string `json:"language"`
	Operation   string `json:"operation"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error"`
	FailedAt    string `json:"failed_at"`
	ReplayedAt  string `json:"replayed_at,omitempty"`
}
