package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

// RecoveryCodesRepository handles single-use backup code persistence.
type RecoveryCodesRepository struct {
	db *sql.DB
}

// NewRecoveryCodesRepository creates a new recovery codes repository.
func NewRecoveryCodesRepository(db *sql.DB) *RecoveryCodesRepository {
	return &RecoveryCodesRepository{db: db}
}

// CreateBatch inserts a set of recovery codes in a single transaction.
func (r *RecoveryCodesRepository) CreateBatch(ctx context.Context, codes []*domain.RecoveryCode) error {
	if len(codes) == 0 {
		return nil
	}

	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO recovery_codes (id, user_id, code_hash, used_at, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, code := range codes {
			if _, err := stmt.ExecContext(ctx,
				code.ID, code.UserID, code.CodeHash, code.UsedAt, code.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert recovery code: %w", err)
			}
		}
		return nil
	})
}

// ListUnusedByUserID returns all unused codes for a user. The caller
// verifies the presented code against each hash; codes are low-entropy
// so only a slow one-way hash is stored, which rules out hash lookup.
func (r *RecoveryCodesRepository) ListUnusedByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.RecoveryCode, error) {
	query := `
		SELECT id, user_id, code_hash, used_at, created_at
		FROM recovery_codes
		WHERE user_id = $1 AND used_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*domain.RecoveryCode
	for rows.Next() {
		code := &domain.RecoveryCode{}
		if err := rows.Scan(&code.ID, &code.UserID, &code.CodeHash, &code.UsedAt, &code.CreatedAt); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// MarkUsed consumes a recovery code. Consuming an already-used code
// reports domain.ErrInvalidRecoveryCode.
func (r *RecoveryCodesRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE recovery_codes
		SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrInvalidRecoveryCode
	}
	return nil
}

// CountUnused returns the number of unused recovery codes for a user.
func (r *RecoveryCodesRepository) CountUnused(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recovery_codes WHERE user_id = $1 AND used_at IS NULL`, userID,
	).Scan(&count)
	return count, err
}

// DeleteAllByUserID removes all recovery codes for a user.
func (r *RecoveryCodesRepository) DeleteAllByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_codes WHERE user_id = $1`, userID,
	)
	return err
}
