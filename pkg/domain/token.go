package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is one link in a session's rotation chain. The plaintext
// secret is handed to the caller exactly once at issuance; storage holds
// only a keyed lookup digest and a slow one-way hash.
type RefreshToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	SessionID  uuid.UUID
	ParentID   *uuid.UUID
	LookupHash string
	SecretHash string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RotatedAt  *time.Time
	RevokedAt  *time.Time
	ReusedAt   *time.Time
}

// IsFresh reports whether the token may still be exchanged: never
// rotated, never revoked, and not past its expiry. At most one fresh
// token exists per rotation chain.
func (t *RefreshToken) IsFresh(now time.Time) bool {
	if t.RotatedAt != nil || t.RevokedAt != nil {
		return false
	}
	return now.Before(t.ExpiresAt)
}

// IsExpired reports whether the token's validity window has passed.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
