package domain

import (
	"time"

	"github.com/google/uuid"
)

// MFAMethod identifies a multi-factor authentication method.
type MFAMethod string

const (
	MFAMethodTOTP MFAMethod = "totp"
)

// MFASecret stores an encrypted TOTP secret for a user.
type MFASecret struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Method          MFAMethod
	SecretEncrypted string
	CreatedAt       time.Time
}

// RecoveryCode is a single-use backup code, stored only as a one-way hash.
type RecoveryCode struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CodeHash  string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// MFASetupResponse is returned once at setup time; the plaintext secret
// and recovery codes are never recoverable afterwards.
type MFASetupResponse struct {
	Secret        string   `json:"secret"`
	QRCodeDataURI string   `json:"qr_code"`
	RecoveryCodes []string `json:"recovery_codes"`
}
