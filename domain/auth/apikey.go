// Package auth provides API-key domain types for project authorization.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// APIKey authorizes one project's calls to the ingestion endpoint. The raw
// secret is never stored; only its digest. Keys are provisioned out-of-band
// and read-only to the sync pipeline.
type APIKey struct {
	keyID      string
	projectID  string
	secretHash string
	createdAt  time.Time
	revokedAt  *time.Time
}

// NewAPIKey creates an APIKey from a raw secret, hashing it immediately.
func NewAPIKey(keyID, projectID, secret string) APIKey {
	return APIKey{
		keyID:      keyID,
		projectID:  projectID,
		secretHash: HashSecret(secret),
		createdAt:  time.Now().UTC(),
	}
}

// NewAPIKeyFull creates an APIKey with all fields (used by the store).
func NewAPIKeyFull(keyID, projectID, secretHash string, createdAt time.Time, revokedAt *time.Time) APIKey {
	return APIKey{
		keyID:      keyID,
		projectID:  projectID,
		secretHash: secretHash,
		createdAt:  createdAt,
		revokedAt:  revokedAt,
	}
}

// KeyID returns the public key identifier sent in request headers.
func (k APIKey) KeyID() string { return k.keyID }

// ProjectID returns the project this key authorizes.
func (k APIKey) ProjectID() string { return k.projectID }

// SecretHash returns the digest of the shared secret.
func (k APIKey) SecretHash() string { return k.secretHash }

// CreatedAt returns when the key was provisioned.
func (k APIKey) CreatedAt() time.Time { return k.createdAt }

// RevokedAt returns when the key was revoked, or nil while active.
func (k APIKey) RevokedAt() *time.Time { return k.revokedAt }

// IsActive reports whether the key is usable: not revoked, or revoked at a
// future instant.
func (k APIKey) IsActive(now time.Time) bool {
	return k.revokedAt == nil || k.revokedAt.After(now)
}

// MatchesSecret reports whether the raw secret hashes to the stored digest,
// using a constant-time comparison.
func (k APIKey) MatchesSecret(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(k.secretHash), []byte(HashSecret(secret))) == 1
}

// Revoke returns a copy of the key revoked at the given instant.
func (k APIKey) Revoke(at time.Time) APIKey {
	at = at.UTC()
	k.revokedAt = &at
	return k
}

// HashSecret returns the hex SHA-256 digest of a raw secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
