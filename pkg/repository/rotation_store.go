package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

// RotationStore extends the refresh token repository with the two
// multi-row units the rotation protocol needs to be atomic: exchanging
// a token for its successor, and the cascade response to token reuse.
type RotationStore struct {
	*RefreshTokensRepository

	db       *sql.DB
	sessions *SessionsRepository
}

// NewRotationStore creates a rotation store over the token and session
// repositories.
func NewRotationStore(db *sql.DB, tokens *RefreshTokensRepository, sessions *SessionsRepository) *RotationStore {
	return &RotationStore{
		RefreshTokensRepository: tokens,
		db:                      db,
		sessions:                sessions,
	}
}

// Rotate marks the parent token rotated and inserts its child in one
// transaction. The parent update is guarded on rotated_at/revoked_at
// being unset, so of two concurrent rotations exactly one commits; the
// other receives domain.ErrReuseDetected and never inserts a child.
func (s *RotationStore) Rotate(ctx context.Context, parentID uuid.UUID, child *domain.RefreshToken, now time.Time) error {
	return Tx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.MarkRotatedTx(ctx, tx, parentID, now); err != nil {
			return err
		}
		return s.CreateTx(ctx, tx, child)
	})
}

// CascadeRevoke is the reuse-attack response: flag and revoke the
// presented token, revoke every non-revoked token chained to the
// session, and revoke the session itself, all in one transaction.
func (s *RotationStore) CascadeRevoke(ctx context.Context, tokenID, sessionID uuid.UUID, now time.Time) error {
	return Tx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.MarkReusedTx(ctx, tx, tokenID, now); err != nil {
			return err
		}
		if err := s.RevokeAllBySessionIDTx(ctx, tx, sessionID, now); err != nil {
			return err
		}
		return s.sessions.RevokeTx(ctx, tx, sessionID, now)
	})
}
