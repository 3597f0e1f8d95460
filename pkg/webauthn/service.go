package webauthn

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

const challengeLen = 32

// CredentialStore is the persistence surface for registered
// credentials. Implemented by repository.CredentialsRepository.
type CredentialStore interface {
	Create(ctx context.Context, cred *domain.WebAuthnCredential) error
	GetByCredentialID(ctx context.Context, credentialID string) (*domain.WebAuthnCredential, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.WebAuthnCredential, error)
	UpdateSignCount(ctx context.Context, id uuid.UUID, signCount uint32, now time.Time) error
	SoftDelete(ctx context.Context, userID uuid.UUID, credentialID string, now time.Time) error
}

// Config holds relying-party configuration.
type Config struct {
	RPName       string
	RPID         string
	ChallengeTTL time.Duration
}

// Service runs the two WebAuthn ceremonies: registration binds a new
// public-key credential to a user, authentication verifies a signed
// assertion against a stored key. Challenges come from an injected
// ChallengeStore so ceremony logic is independent of where challenge
// state lives.
type Service struct {
	config     Config
	creds      CredentialStore
	challenges ChallengeStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new WebAuthn service.
func NewService(config Config, creds CredentialStore, challenges ChallengeStore, logger *slog.Logger) *Service {
	if config.ChallengeTTL == 0 {
		config.ChallengeTTL = DefaultChallengeTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:     config,
		creds:      creds,
		challenges: challenges,
		logger:     logger,
		now:        time.Now,
	}
}

// RegistrationOptions is returned by BeginRegistration for the client
// to hand to the authenticator.
type RegistrationOptions struct {
	Challenge            string   `json:"challenge"`
	RPID                 string   `json:"rp_id"`
	RPName               string   `json:"rp_name"`
	ExcludeCredentialIDs []string `json:"exclude_credential_ids"`
}

// AuthenticationOptions is returned by BeginAuthentication.
type AuthenticationOptions struct {
	Challenge  string   `json:"challenge"`
	RPID       string   `json:"rp_id"`
	Transports []string `json:"transports,omitempty"`
}

// BeginRegistration issues a challenge for a registration ceremony and
// lists the user's existing credential identifiers so the authenticator
// can refuse to create a duplicate.
func (s *Service) BeginRegistration(ctx context.Context, userID uuid.UUID) (*RegistrationOptions, error) {
	existing, err := s.creds.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	excludeIDs := make([]string, 0, len(existing))
	for _, cred := range existing {
		excludeIDs = append(excludeIDs, cred.CredentialID)
	}

	challenge, err := s.issueChallenge(ctx, registrationKey(userID))
	if err != nil {
		return nil, err
	}

	return &RegistrationOptions{
		Challenge:            base64.RawURLEncoding.EncodeToString(challenge),
		RPID:                 s.config.RPID,
		RPName:               s.config.RPName,
		ExcludeCredentialIDs: excludeIDs,
	}, nil
}

// FinishRegistration verifies a registration response and persists the
// new credential. No partial credential is ever stored: every check
// runs before the single insert.
func (s *Service) FinishRegistration(ctx context.Context, userID uuid.UUID, credentialID string, attestation, clientDataJSON []byte, transports []string) (*domain.WebAuthnCredential, error) {
	challenge, ok, err := s.challenges.Take(ctx, registrationKey(userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrChallengeExpired
	}

	if _, err := parseClientData(clientDataJSON, ceremonyCreate, challenge); err != nil {
		return nil, err
	}

	att, authData, err := parseAttestationObject(attestation)
	if err != nil {
		return nil, err
	}

	// The attested credential id must be the one the client claims to
	// have created.
	if credentialID == "" || credentialID != base64.RawURLEncoding.EncodeToString(authData.CredentialID) {
		return nil, domain.ErrMalformedAssertion
	}

	// Reject unverifiable keys before anything is persisted.
	if _, err := parseCOSEPublicKey(authData.PublicKey); err != nil {
		return nil, err
	}

	if _, err := s.creds.GetByCredentialID(ctx, credentialID); err == nil {
		return nil, domain.ErrDuplicateCredential
	} else if !errors.Is(err, domain.ErrCredentialNotFound) {
		return nil, err
	}

	cred := &domain.WebAuthnCredential{
		ID:              uuid.New(),
		UserID:          userID,
		CredentialID:    credentialID,
		PublicKey:       append([]byte(nil), authData.PublicKey...),
		SignCount:       authData.SignCount,
		AttestationType: att.Format,
		Transports:      transports,
		CreatedAt:       s.now(),
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// BeginAuthentication issues a challenge for an authentication ceremony
// against a registered credential.
func (s *Service) BeginAuthentication(ctx context.Context, credentialID string) (*AuthenticationOptions, error) {
	cred, err := s.creds.GetByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	challenge, err := s.issueChallenge(ctx, authenticationKey(credentialID))
	if err != nil {
		return nil, err
	}

	return &AuthenticationOptions{
		Challenge:  base64.RawURLEncoding.EncodeToString(challenge),
		RPID:       s.config.RPID,
		Transports: cred.Transports,
	}, nil
}

// FinishAuthentication verifies a signed assertion and returns the
// credential, updated with the new signature counter. The counter check
// runs before signature verification: a regression is cheap to detect
// and already marks the request suspect, but a passing counter is never
// sufficient on its own.
func (s *Service) FinishAuthentication(ctx context.Context, credentialID string, authenticatorData, clientDataJSON, signature []byte) (*domain.WebAuthnCredential, error) {
	challenge, ok, err := s.challenges.Take(ctx, authenticationKey(credentialID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrChallengeExpired
	}

	if _, err := parseClientData(clientDataJSON, ceremonyGet, challenge); err != nil {
		return nil, err
	}

	cred, err := s.creds.GetByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	authData, err := parseAuthenticatorData(authenticatorData)
	if err != nil {
		return nil, err
	}

	if cred.SignCount != 0 && authData.SignCount != 0 && authData.SignCount <= cred.SignCount {
		s.logger.Warn("signature counter regression",
			"event", "webauthn.counter_regression",
			"credential_id", credentialID,
			"user_id", cred.UserID,
			"stored_count", cred.SignCount,
			"received_count", authData.SignCount,
		)
		return nil, domain.ErrCounterRegression
	}

	pub, err := parseCOSEPublicKey(cred.PublicKey)
	if err != nil {
		return nil, err
	}

	clientDataHash := sha256.Sum256(clientDataJSON)
	payload := append(append([]byte(nil), authenticatorData...), clientDataHash[:]...)
	digest := sha256.Sum256(payload)
	if !ecdsa.VerifyASN1(pub, digest[:], signature) {
		return nil, domain.ErrSignatureInvalid
	}

	now := s.now()
	if err := s.creds.UpdateSignCount(ctx, cred.ID, authData.SignCount, now); err != nil {
		return nil, err
	}
	cred.SignCount = authData.SignCount
	cred.LastUsedAt = &now
	return cred, nil
}

// Credentials lists a user's registered credentials.
func (s *Service) Credentials(ctx context.Context, userID uuid.UUID) ([]*domain.WebAuthnCredential, error) {
	return s.creds.ListByUserID(ctx, userID)
}

// Unregister soft-deletes a credential. Unregistering a missing or
// already-deleted credential succeeds.
func (s *Service) Unregister(ctx context.Context, userID uuid.UUID, credentialID string) error {
	return s.creds.SoftDelete(ctx, userID, credentialID, s.now())
}

func (s *Service) issueChallenge(ctx context.Context, key string) ([]byte, error) {
	challenge := make([]byte, challengeLen)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	if err := s.challenges.Put(ctx, key, challenge, s.config.ChallengeTTL); err != nil {
		return nil, err
	}
	return challenge, nil
}

func registrationKey(userID uuid.UUID) string { return "register:" + userID.String() }

func authenticationKey(credentialID string) string { return "auth:" + credentialID }
