package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

// Default refresh token parameters
const (
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	refreshSecretLen = 32
)

// TokenStore is the persistence surface the refresh service needs.
// Rotate and CascadeRevoke must each be atomic: a rotation or a reuse
// response is never observable half-done. Implemented by
// repository.RotationStore.
type TokenStore interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByLookupHash(ctx context.Context, lookupHash string) (*domain.RefreshToken, error)
	MarkRevoked(ctx context.Context, id uuid.UUID, now time.Time) error
	RevokeAllBySessionID(ctx context.Context, sessionID uuid.UUID, now time.Time) error
	ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.RefreshToken, error)

	// Rotate marks the parent rotated and inserts the child in one
	// transaction. Returns domain.ErrReuseDetected if the parent was
	// already rotated or revoked by a concurrent request.
	Rotate(ctx context.Context, parentID uuid.UUID, child *domain.RefreshToken, now time.Time) error

	// CascadeRevoke flags the presented token as reused and revokes it,
	// revokes every non-revoked token chained to the session, and
	// revokes the session itself, in one transaction.
	CascadeRevoke(ctx context.Context, tokenID, sessionID uuid.UUID, now time.Time) error
}

// RefreshConfig holds refresh token configuration.
type RefreshConfig struct {
	// TTL is the validity window of each issued token.
	TTL time.Duration
	// LookupKey keys the fast storage index digest. It must be stable
	// across restarts or outstanding tokens become unlookupable.
	LookupKey []byte
}

// RefreshService issues rotating single-use refresh tokens chained to a
// session, and detects reuse of already-rotated or revoked tokens.
type RefreshService struct {
	config   RefreshConfig
	tokens   TokenStore
	sessions *SessionService
	issuer   *TokenIssuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewRefreshService creates a new refresh token service.
func NewRefreshService(config RefreshConfig, tokens TokenStore, sessions *SessionService, issuer *TokenIssuer, logger *slog.Logger) *RefreshService {
	if config.TTL == 0 {
		config.TTL = DefaultRefreshTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshService{
		config:   config,
		tokens:   tokens,
		sessions: sessions,
		issuer:   issuer,
		logger:   logger,
		now:      time.Now,
	}
}

// TTL returns the configured refresh token lifetime.
func (s *RefreshService) TTL() time.Duration {
	return s.config.TTL
}

// AccessTTL returns the lifetime of the access tokens minted alongside
// rotations.
func (s *RefreshService) AccessTTL() time.Duration {
	return s.issuer.TTL()
}

// newToken builds a token record and its plaintext secret. The secret
// leaves this method exactly once; storage keeps only the keyed lookup
// digest and the slow one-way hash.
func (s *RefreshService) newToken(userID, sessionID uuid.UUID, parentID *uuid.UUID, now time.Time) (*domain.RefreshToken, string, error) {
	secret, err := GenerateSecret(refreshSecretLen)
	if err != nil {
		return nil, "", err
	}
	secretHash, err := HashSecret(secret)
	if err != nil {
		return nil, "", err
	}

	token := &domain.RefreshToken{
		ID:         uuid.New(),
		UserID:     userID,
		SessionID:  sessionID,
		ParentID:   parentID,
		LookupHash: LookupDigest(s.config.LookupKey, secret),
		SecretHash: secretHash,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.config.TTL),
	}
	return token, secret, nil
}

// Issue creates the first token of a session's rotation chain and mints
// the matching access token. Called after primary or WebAuthn
// authentication succeeds.
func (s *RefreshService) Issue(ctx context.Context, session *domain.Session) (*domain.TokenPair, error) {
	now := s.now()
	token, secret, err := s.newToken(session.UserID, session.ID, nil, now)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}
	return s.tokenPair(session, secret)
}

// Rotate runs the validation-and-rotation protocol for a presented
// refresh secret: it verifies the secret, detects reuse, checks expiry
// and session liveness, and exchanges the token for its successor plus
// a fresh access token. At most one concurrent rotation of a given
// token wins; losers receive domain.ErrReuseDetected.
func (s *RefreshService) Rotate(ctx context.Context, secret string) (*domain.TokenPair, error) {
	token, err := s.lookup(ctx, secret)
	if err != nil {
		return nil, err
	}

	// One clock read per operation so the rotation, revocation, and
	// expiry comparisons cannot disagree.
	now := s.now()

	if token.RotatedAt != nil || token.RevokedAt != nil {
		return nil, s.reuseResponse(ctx, token, now)
	}

	if token.IsExpired(now) {
		if err := s.tokens.MarkRevoked(ctx, token.ID, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrTokenExpired
	}

	session, err := s.sessions.Get(ctx, token.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive(now) {
		if err := s.tokens.MarkRevoked(ctx, token.ID, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrSessionInactive
	}

	child, childSecret, err := s.newToken(token.UserID, token.SessionID, &token.ID, now)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Rotate(ctx, token.ID, child, now); err != nil {
		if errors.Is(err, domain.ErrReuseDetected) {
			// Lost a race against a concurrent rotation of the same
			// token: the stale presentation takes the reuse path.
			return nil, s.reuseResponse(ctx, token, now)
		}
		return nil, err
	}

	_ = s.sessions.Touch(ctx, session)

	return s.tokenPair(session, childSecret)
}

// Logout revokes the session a presented refresh secret belongs to,
// together with its entire token chain. Unknown secrets are a no-op so
// logout cannot be used as a token oracle.
func (s *RefreshService) Logout(ctx context.Context, secret string) error {
	token, err := s.lookup(ctx, secret)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return nil
		}
		return err
	}

	now := s.now()
	if err := s.tokens.RevokeAllBySessionID(ctx, token.SessionID, now); err != nil {
		return err
	}
	return s.sessions.Revoke(ctx, token.SessionID)
}

// RevokeAllForSession bulk-revokes every non-revoked token chained to a
// session. Used on explicit per-session revocation.
func (s *RefreshService) RevokeAllForSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.tokens.RevokeAllBySessionID(ctx, sessionID, s.now())
}

// lookup resolves a presented secret to its token record via the keyed
// index digest, then confirms it against the stored slow hash.
func (s *RefreshService) lookup(ctx context.Context, secret string) (*domain.RefreshToken, error) {
	if secret == "" {
		return nil, domain.ErrInvalidCredentials
	}
	token, err := s.tokens.GetByLookupHash(ctx, LookupDigest(s.config.LookupKey, secret))
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifySecret(secret, token.SecretHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return token, nil
}

// reuseResponse reacts to presentation of an already-rotated or revoked
// token: the whole session is treated as compromised, not just the one
// token.
func (s *RefreshService) reuseResponse(ctx context.Context, token *domain.RefreshToken, now time.Time) error {
	s.logger.Warn("refresh token reuse detected",
		"event", "auth.refresh.reuse_detected",
		"token_id", token.ID,
		"session_id", token.SessionID,
		"user_id", token.UserID,
	)
	if err := s.tokens.CascadeRevoke(ctx, token.ID, token.SessionID, now); err != nil {
		return err
	}
	return domain.ErrReuseDetected
}

func (s *RefreshService) tokenPair(session *domain.Session, refreshSecret string) (*domain.TokenPair, error) {
	accessToken, expiresAt, err := s.issuer.Issue(session.UserID, session.ID, session.MFAVerified)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshSecret,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.issuer.TTL().Seconds()),
		ExpiresAt:    expiresAt,
	}, nil
}
