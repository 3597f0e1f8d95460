package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the principal a session, token, or credential belongs to.
// Everything beyond identity and primary-auth material lives outside
// this core.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	MFAEnabled   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
