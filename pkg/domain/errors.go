package domain

import "errors"

// Authentication errors
var (
	ErrNotAuthenticated   = errors.New("no usable credential presented")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInactive = errors.New("session revoked or expired")
)

// Refresh token errors
var (
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenExpired  = errors.New("refresh token expired")
	ErrReuseDetected = errors.New("refresh token reuse detected - possible token theft")
)

// WebAuthn ceremony errors
var (
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrDuplicateCredential = errors.New("credential identifier already registered")
	ErrChallengeExpired    = errors.New("challenge missing or expired")
	ErrChallengeMismatch   = errors.New("challenge does not match")
	ErrCounterRegression   = errors.New("signature counter did not advance - possible cloned authenticator")
	ErrSignatureInvalid    = errors.New("assertion signature verification failed")
	ErrUnsupportedKey      = errors.New("unsupported credential public key type")
	ErrMalformedAssertion  = errors.New("malformed authenticator response")
)

// MFA errors
var (
	ErrMFANotEnabled       = errors.New("MFA is not enabled for this account")
	ErrMFAAlreadyEnabled   = errors.New("MFA is already enabled")
	ErrInvalidMFACode      = errors.New("invalid MFA code")
	ErrInvalidRecoveryCode = errors.New("invalid or already used recovery code")
)
