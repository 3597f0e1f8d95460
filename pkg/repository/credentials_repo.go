package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
	"github.com/lib/pq"
)

// CredentialsRepository handles WebAuthn credential persistence.
type CredentialsRepository struct {
	db *sql.DB
}

// NewCredentialsRepository creates a new WebAuthn credentials repository.
func NewCredentialsRepository(db *sql.DB) *CredentialsRepository {
	return &CredentialsRepository{db: db}
}

// Create inserts a new credential.
func (r *CredentialsRepository) Create(ctx context.Context, cred *domain.WebAuthnCredential) error {
	query := `
		INSERT INTO webauthn_credentials (id, user_id, credential_id, public_key, sign_count, attestation_type, transports, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		cred.ID, cred.UserID, cred.CredentialID, cred.PublicKey, cred.SignCount,
		cred.AttestationType, pq.Array(cred.Transports), cred.CreatedAt,
	)
	return err
}

// GetByCredentialID retrieves a non-deleted credential by its
// authenticator-supplied identifier.
func (r *CredentialsRepository) GetByCredentialID(ctx context.Context, credentialID string) (*domain.WebAuthnCredential, error) {
	query := `
		SELECT id, user_id, credential_id, public_key, sign_count, attestation_type, transports, created_at, last_used_at, deleted_at
		FROM webauthn_credentials
		WHERE credential_id = $1 AND deleted_at IS NULL
	`
	cred := &domain.WebAuthnCredential{}
	err := r.db.QueryRowContext(ctx, query, credentialID).Scan(
		&cred.ID, &cred.UserID, &cred.CredentialID, &cred.PublicKey, &cred.SignCount,
		&cred.AttestationType, pq.Array(&cred.Transports), &cred.CreatedAt,
		&cred.LastUsedAt, &cred.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// ListByUserID returns all non-deleted credentials for a user.
func (r *CredentialsRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.WebAuthnCredential, error) {
	query := `
		SELECT id, user_id, credential_id, public_key, sign_count, attestation_type, transports, created_at, last_used_at, deleted_at
		FROM webauthn_credentials
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*domain.WebAuthnCredential
	for rows.Next() {
		cred := &domain.WebAuthnCredential{}
		err := rows.Scan(
			&cred.ID, &cred.UserID, &cred.CredentialID, &cred.PublicKey, &cred.SignCount,
			&cred.AttestationType, pq.Array(&cred.Transports), &cred.CreatedAt,
			&cred.LastUsedAt, &cred.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// UpdateSignCount records a successful authentication: new counter value
// and last-used time.
func (r *CredentialsRepository) UpdateSignCount(ctx context.Context, id uuid.UUID, signCount uint32, now time.Time) error {
	query := `
		UPDATE webauthn_credentials
		SET sign_count = $2, last_used_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, id, signCount, now)
	return err
}

// SoftDelete marks a credential deleted. Deleting a missing or
// already-deleted credential is not an error.
func (r *CredentialsRepository) SoftDelete(ctx context.Context, userID uuid.UUID, credentialID string, now time.Time) error {
	query := `
		UPDATE webauthn_credentials
		SET deleted_at = $3
		WHERE user_id = $1 AND credential_id = $2 AND deleted_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, userID, credentialID, now)
	return err
}
