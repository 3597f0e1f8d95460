package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

func newTestIssuer(ttl time.Duration) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		TTL:    ttl,
		Secret: []byte("test-secret-key"),
		Issuer: "authcore-test",
	})
}

func TestTokenIssuer_IssueAndValidate(t *testing.T) {
	issuer := newTestIssuer(15 * time.Minute)
	userID := uuid.New()
	sessionID := uuid.New()

	token, expiresAt, err := issuer.Issue(userID, sessionID, true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) > 15*time.Minute {
		t.Errorf("expiry too far out: %v", expiresAt)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	gotUser, err := claims.UserID()
	if err != nil || gotUser != userID {
		t.Errorf("UserID = %v, %v; want %v", gotUser, err, userID)
	}
	gotSession, err := claims.SessionID()
	if err != nil || gotSession != sessionID {
		t.Errorf("SessionID = %v, %v; want %v", gotSession, err, sessionID)
	}
	if !claims.MFAVerified {
		t.Error("MFAVerified not carried through")
	}
}

func TestTokenIssuer_Validate_Expired(t *testing.T) {
	issuer := newTestIssuer(15 * time.Minute)

	issued := time.Now()
	issuer.now = func() time.Time { return issued }
	token, _, err := issuer.Issue(uuid.New(), uuid.New(), false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	issuer.now = func() time.Time { return issued.Add(16 * time.Minute) }
	if _, err := issuer.Validate(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Validate after expiry = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuer_Validate_WrongSecret(t *testing.T) {
	issuer := newTestIssuer(15 * time.Minute)
	token, _, err := issuer.Issue(uuid.New(), uuid.New(), false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := NewTokenIssuer(TokenIssuerConfig{Secret: []byte("different-secret")})
	if _, err := other.Validate(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Validate with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuer_Validate_RejectsUnsignedAlg(t *testing.T) {
	issuer := newTestIssuer(15 * time.Minute)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	if _, err := issuer.Validate(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Validate alg=none = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuer_Validate_Garbage(t *testing.T) {
	issuer := newTestIssuer(15 * time.Minute)
	if _, err := issuer.Validate("not.a.jwt"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Validate garbage = %v, want ErrInvalidToken", err)
	}
}
