package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebAuthnCredential is a public-key credential bound to a user by a
// registration ceremony. CredentialID is the authenticator-supplied
// identifier, unique among non-deleted credentials. PublicKey holds the
// COSE-encoded key bytes as received during registration.
type WebAuthnCredential struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	CredentialID    string
	PublicKey       []byte
	SignCount       uint32
	AttestationType string
	Transports      []string
	CreatedAt       time.Time
	LastUsedAt      *time.Time
	DeletedAt       *time.Time
}
