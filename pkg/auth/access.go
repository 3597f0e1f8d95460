package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

// DefaultAccessTokenTTL is the default lifetime of an access token.
const DefaultAccessTokenTTL = 15 * time.Minute

// TokenIssuerConfig holds access token configuration.
type TokenIssuerConfig struct {
	TTL    time.Duration
	Secret []byte
	Issuer string
}

// AccessClaims are the claims carried by an access token. Subject is
// the user ID, ID (jti) the session ID.
type AccessClaims struct {
	jwt.RegisteredClaims
	MFAVerified bool `json:"mfa_verified,omitempty"`
}

// SessionID returns the session the token was minted for.
func (c *AccessClaims) SessionID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.ID)
}

// UserID returns the principal the token was minted for.
func (c *AccessClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenIssuer mints and validates short-lived signed access tokens.
// It is stateless: everything a consumer needs is inside the token.
type TokenIssuer struct {
	config TokenIssuerConfig
	now    func() time.Time
}

// NewTokenIssuer creates a new access token issuer.
func NewTokenIssuer(config TokenIssuerConfig) *TokenIssuer {
	if config.TTL == 0 {
		config.TTL = DefaultAccessTokenTTL
	}
	return &TokenIssuer{config: config, now: time.Now}
}

// TTL returns the configured access token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.config.TTL
}

// Issue mints a signed access token for a user and session.
func (i *TokenIssuer) Issue(userID, sessionID uuid.UUID, mfaVerified bool) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.config.TTL)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    i.config.Issuer,
			ID:        sessionID.String(),
		},
		MFAVerified: mfaVerified,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies an access token and returns its claims.
func (i *TokenIssuer) Validate(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return i.config.Secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now() }))
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
