package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session represents a server-side authentication session bound to a user.
type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	LastSeenAt *time.Time
	IP         string
	UserAgent  string
	// MFAVerified records whether a second factor was verified when the
	// session was established; access tokens minted for the session
	// carry it as a claim.
	MFAVerified bool
}

// IsActive reports whether the session is usable at the given instant:
// not revoked, and not past its expiry.
func (s *Session) IsActive(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(s.ExpiresAt)
}

// TokenPair represents the access and refresh token pair handed to a client.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}
