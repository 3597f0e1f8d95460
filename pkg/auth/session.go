package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

// Default session parameters
const (
	DefaultSessionTTL    = 30 * 24 * time.Hour
	DefaultTouchInterval = 5 * time.Minute
)

// SessionStore is the persistence surface the session service needs.
// Implemented by repository.SessionsRepository.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID, now time.Time) error
	Revoke(ctx context.Context, id uuid.UUID, now time.Time) error
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID, now time.Time) error
}

// SessionConfig holds session service configuration.
type SessionConfig struct {
	// SessionTTL is how long a session stays usable without revocation.
	SessionTTL time.Duration
	// TouchInterval bounds the write volume from activity tracking: a
	// touch within this interval of the previous one is skipped.
	TouchInterval time.Duration
}

// SessionService manages session lifecycle: create, lookup, touch, revoke.
type SessionService struct {
	config   SessionConfig
	sessions SessionStore
	now      func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, sessions SessionStore) *SessionService {
	if config.SessionTTL == 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.TouchInterval == 0 {
		config.TouchInterval = DefaultTouchInterval
	}
	return &SessionService{
		config:   config,
		sessions: sessions,
		now:      time.Now,
	}
}

// SessionOpts holds per-session context captured at creation time.
type SessionOpts struct {
	IP          string
	UserAgent   string
	MFAVerified bool
}

// Create allocates a new session for a user.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, opts SessionOpts) (*domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		ID:          uuid.New(),
		UserID:      userID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.config.SessionTTL),
		LastSeenAt:  &now,
		IP:          opts.IP,
		UserAgent:   opts.UserAgent,
		MFAVerified: opts.MFAVerified,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get retrieves a session by ID.
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

// ListActive returns the active sessions for a user.
func (s *SessionService) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	return s.sessions.ListActiveByUserID(ctx, userID)
}

// Touch records activity on a session. Writes are throttled: if the
// last recorded activity is within TouchInterval the call is a no-op.
// Skipping a touch is always safe.
func (s *SessionService) Touch(ctx context.Context, session *domain.Session) error {
	now := s.now()
	if session.LastSeenAt != nil && now.Sub(*session.LastSeenAt) < s.config.TouchInterval {
		return nil
	}
	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return err
	}
	session.LastSeenAt = &now
	return nil
}

// Revoke revokes a session. Revoking an already-revoked session is a no-op.
func (s *SessionService) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.sessions.Revoke(ctx, id, s.now())
}

// RevokeAllForUser revokes every session belonging to a user.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAllByUserID(ctx, userID, s.now())
}
