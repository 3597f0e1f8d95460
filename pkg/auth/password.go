package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

// UserStore is the persistence surface for principals. Implemented by
// repository.UsersRepository.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SetMFAEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// PasswordService handles primary (password) authentication. It is the
// conventional entry point into session issuance; hashing policy beyond
// argon2id parameters is out of scope here.
type PasswordService struct {
	users UserStore
}

// NewPasswordService creates a new password service.
func NewPasswordService(users UserStore) *PasswordService {
	return &PasswordService{users: users}
}

// Register creates a new user with a hashed password.
func (s *PasswordService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	hash, err := HashSecret(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies email and password and returns the user on
// success. Unknown users and wrong passwords are indistinguishable to
// the caller.
func (s *PasswordService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifySecret(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *PasswordService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}
