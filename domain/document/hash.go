package document

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash is the hex digest of a payload's canonical JSON. The ingestion
// endpoint compares it against the stored document's hash to detect and skip
// no-op re-submissions.
type ContentHash string

// HashPayload computes the ContentHash of a payload.
func HashPayload(p Payload) ContentHash {
	sum := sha256.Sum256(p.CanonicalJSON())
	return ContentHash(hex.EncodeToString(sum[:]))
}

// String returns the hex digest.
func (h ContentHash) String() string { return string(h) }

// IsZero returns true if the hash is unset.
func (h ContentHash) IsZero() bool { return h == "" }
