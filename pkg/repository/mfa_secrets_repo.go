package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

// MFASecretsRepository handles encrypted TOTP secret persistence.
type MFASecretsRepository struct {
	db *sql.DB
}

// NewMFASecretsRepository creates a new MFA secrets repository.
func NewMFASecretsRepository(db *sql.DB) *MFASecretsRepository {
	return &MFASecretsRepository{db: db}
}

// Create inserts a new MFA secret.
func (r *MFASecretsRepository) Create(ctx context.Context, secret *domain.MFASecret) error {
	query := `
		INSERT INTO mfa_secrets (id, user_id, method, secret_encrypted, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		secret.ID, secret.UserID, secret.Method, secret.SecretEncrypted, secret.CreatedAt,
	)
	return err
}

// GetByUserIDAndMethod retrieves a secret for a user and method.
func (r *MFASecretsRepository) GetByUserIDAndMethod(ctx context.Context, userID uuid.UUID, method domain.MFAMethod) (*domain.MFASecret, error) {
	query := `
		SELECT id, user_id, method, secret_encrypted, created_at
		FROM mfa_secrets
		WHERE user_id = $1 AND method = $2
	`
	secret := &domain.MFASecret{}
	err := r.db.QueryRowContext(ctx, query, userID, method).Scan(
		&secret.ID, &secret.UserID, &secret.Method, &secret.SecretEncrypted, &secret.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMFANotEnabled
	}
	if err != nil {
		return nil, err
	}
	return secret, nil
}

// DeleteAllByUserID removes all MFA secrets for a user.
func (r *MFASecretsRepository) DeleteAllByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_secrets WHERE user_id = $1`, userID,
	)
	return err
}
