package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

// RefreshTokensRepository handles refresh token persistence. Tokens are
// never physically deleted inside a rotation chain; rotated and revoked
// rows are retained for reuse forensics.
type RefreshTokensRepository struct {
	db *sql.DB
}

// NewRefreshTokensRepository creates a new refresh tokens repository.
func NewRefreshTokensRepository(db *sql.DB) *RefreshTokensRepository {
	return &RefreshTokensRepository{db: db}
}

// Create inserts a new refresh token.
func (r *RefreshTokensRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, session_id, parent_id, lookup_hash, secret_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.SessionID, token.ParentID,
		token.LookupHash, token.SecretHash, token.IssuedAt, token.ExpiresAt,
	)
	return err
}

// CreateTx inserts a new refresh token within a transaction.
func (r *RefreshTokensRepository) CreateTx(ctx context.Context, tx *sql.Tx, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, session_id, parent_id, lookup_hash, secret_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		token.ID, token.UserID, token.SessionID, token.ParentID,
		token.LookupHash, token.SecretHash, token.IssuedAt, token.ExpiresAt,
	)
	return err
}

// GetByLookupHash retrieves a token by its keyed lookup digest. Rotated
// and revoked tokens are returned too: presenting one of those is how a
// reuse attack is detected.
func (r *RefreshTokensRepository) GetByLookupHash(ctx context.Context, lookupHash string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, session_id, parent_id, lookup_hash, secret_hash,
		       issued_at, expires_at, rotated_at, revoked_at, reused_at
		FROM refresh_tokens
		WHERE lookup_hash = $1
	`
	token := &domain.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, lookupHash).Scan(
		&token.ID, &token.UserID, &token.SessionID, &token.ParentID,
		&token.LookupHash, &token.SecretHash, &token.IssuedAt, &token.ExpiresAt,
		&token.RotatedAt, &token.RevokedAt, &token.ReusedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// MarkRotatedTx marks a token as rotated within a transaction. The guard
// on rotated_at/revoked_at makes concurrent rotations race safely: the
// loser affects zero rows and is reported as domain.ErrReuseDetected.
func (r *RefreshTokensRepository) MarkRotatedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET rotated_at = $2
		WHERE id = $1 AND rotated_at IS NULL AND revoked_at IS NULL
	`
	result, err := tx.ExecContext(ctx, query, id, now)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrReuseDetected
	}
	return nil
}

// MarkRevoked revokes a single token.
func (r *RefreshTokensRepository) MarkRevoked(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, id, now)
	return err
}

// MarkReusedTx flags a token as reused and revokes it, within a transaction.
func (r *RefreshTokensRepository) MarkReusedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET reused_at = $2, revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
	`
	_, err := tx.ExecContext(ctx, query, id, now)
	return err
}

// RevokeAllBySessionID revokes every non-revoked token chained to a session.
func (r *RefreshTokensRepository) RevokeAllBySessionID(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE session_id = $1 AND revoked_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, sessionID, now)
	return err
}

// RevokeAllBySessionIDTx revokes a session's token chain within a transaction.
func (r *RefreshTokensRepository) RevokeAllBySessionIDTx(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID, now time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE session_id = $1 AND revoked_at IS NULL
	`
	_, err := tx.ExecContext(ctx, query, sessionID, now)
	return err
}

// ListBySessionID returns every token chained to a session, oldest first.
func (r *RefreshTokensRepository) ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, session_id, parent_id, lookup_hash, secret_hash,
		       issued_at, expires_at, rotated_at, revoked_at, reused_at
		FROM refresh_tokens
		WHERE session_id = $1
		ORDER BY issued_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*domain.RefreshToken
	for rows.Next() {
		token := &domain.RefreshToken{}
		err := rows.Scan(
			&token.ID, &token.UserID, &token.SessionID, &token.ParentID,
			&token.LookupHash, &token.SecretHash, &token.IssuedAt, &token.ExpiresAt,
			&token.RotatedAt, &token.RevokedAt, &token.ReusedAt,
		)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
