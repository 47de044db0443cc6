// Package document provides the indexable representation of CMS content.
package document

import (
	"encoding/json"
	"maps"
	"sort"
	"strings"
)

// Payload holds the denormalized content fields the index needs from one CMS
// record. The CMS owns its production; the ingestion side only reads it.
type Payload struct {
	title    string
	body     string
	url      string
	language string
	metadata map[string]string
}

// NewPayload creates a Payload.
func NewPayload(title, body, url, language string, metadata map[string]string) Payload {
	return Payload{
		title:    title,
		body:     body,
		url:      url,
		language: language,
		metadata: copyMetadata(metadata),
	}
}

// Title returns the record title.
func (p Payload) Title() string { return p.title }

// Body returns the record body or summary text.
func (p Payload) Body() string { return p.body }

// URL returns the record URL or slug.
func (p Payload) URL() string { return p.url }

// Language returns the record language.
func (p Payload) Language() string { return p.language }

// Metadata returns a copy of the open key/value metadata (taxonomy, section,
// author and similar).
func (p Payload) Metadata() map[string]string {
	return copyMetadata(p.metadata)
}

// IsEmpty returns true if no content fields are set.
func (p Payload) IsEmpty() bool {
	return p.title == "" && p.body == "" && p.url == ""
}

// IndexableText returns the text fed to the embedding provider: title and
// body joined, trimmed.
func (p Payload) IndexableText() string {
	return strings.TrimSpace(strings.TrimSpace(p.title) + "\n" + strings.TrimSpace(p.body))
}

// CanonicalJSON serializes the payload deterministically: fixed field order,
// metadata keys sorted. Both sides of the pipeline derive the content hash
// from this form, so it must never depend on map iteration order.
func (p Payload) CanonicalJSON() []byte {
	keys := make([]string, 0, len(p.metadata))
	for k := range p.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	meta := make([]canonicalMetaEntry, len(keys))
	for i, k := range keys {
		meta[i] = canonicalMetaEntry{Key: k, Value: p.metadata[k]}
	}

	// Marshal of a struct with no custom types cannot fail.
	raw, _ := json.Marshal(canonicalPayload{
		Title:    p.title,
		Body:     p.body,
		URL:      p.url,
		Language: p.language,
		Metadata: meta,
	})
	return raw
}

type canonicalPayload struct {
	Title    string               `json:"title"`
	Body     string               `json:"body"`
	URL      string               `json:"url"`
	Language string               `json:"language"`
	Metadata []canonicalMetaEntry `json:"metadata"`
}

type canonicalMetaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func copyMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	result := make(map[string]string, len(metadata))
	maps.Copy(result, metadata)
	return result
}
