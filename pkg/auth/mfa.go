package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// TOTP parameters
	totpPeriod = 30
	totpWindow = 1 // Allow ±30 seconds clock drift

	// Recovery code parameters
	recoveryCodeLength = 12
	recoveryCodeCount  = 8
	recoveryCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // No ambiguous chars
)

// MFASecretStore persists encrypted TOTP secrets. Implemented by
// repository.MFASecretsRepository.
type MFASecretStore interface {
	Create(ctx context.Context, secret *domain.MFASecret) error
	GetByUserIDAndMethod(ctx context.Context, userID uuid.UUID, method domain.MFAMethod) (*domain.MFASecret, error)
	DeleteAllByUserID(ctx context.Context, userID uuid.UUID) error
}

// RecoveryCodeStore persists hashed single-use backup codes.
// Implemented by repository.RecoveryCodesRepository.
type RecoveryCodeStore interface {
	CreateBatch(ctx context.Context, codes []*domain.RecoveryCode) error
	ListUnusedByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.RecoveryCode, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	CountUnused(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteAllByUserID(ctx context.Context, userID uuid.UUID) error
}

// MFAConfig contains configuration for the MFA service.
type MFAConfig struct {
	Issuer        string // shown in authenticator apps
	EncryptionKey []byte // 32 bytes for AES-256
}

// MFAService handles TOTP enrollment and verification plus single-use
// recovery codes. Recovery codes go through the same slow hasher as
// other opaque secrets.
type MFAService struct {
	config        MFAConfig
	secrets       MFASecretStore
	recoveryCodes RecoveryCodeStore
	users         UserStore
}

// NewMFAService creates a new MFA service.
func NewMFAService(config MFAConfig, secrets MFASecretStore, recoveryCodes RecoveryCodeStore, users UserStore) *MFAService {
	return &MFAService{
		config:        config,
		secrets:       secrets,
		recoveryCodes: recoveryCodes,
		users:         users,
	}
}

// Setup generates a TOTP secret and recovery codes for a user. The
// plaintext secret and codes are returned once and never recoverable.
func (s *MFAService) Setup(ctx context.Context, userID uuid.UUID) (*domain.MFASetupResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, domain.ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: user.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return nil, fmt.Errorf("generate TOTP key: %w", err)
	}

	var qrBuf bytes.Buffer
	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("generate QR code image: %w", err)
	}
	if err := png.Encode(&qrBuf, img); err != nil {
		return nil, fmt.Errorf("encode QR code: %w", err)
	}
	qrDataURI := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(qrBuf.Bytes()))

	plainCodes := make([]string, recoveryCodeCount)
	hashedCodes := make([]*domain.RecoveryCode, recoveryCodeCount)
	now := time.Now()
	for i := 0; i < recoveryCodeCount; i++ {
		code, err := generateRecoveryCode()
		if err != nil {
			return nil, fmt.Errorf("generate recovery code: %w", err)
		}
		hash, err := HashSecret(code)
		if err != nil {
			return nil, fmt.Errorf("hash recovery code: %w", err)
		}
		plainCodes[i] = code
		hashedCodes[i] = &domain.RecoveryCode{
			ID:        uuid.New(),
			UserID:    userID,
			CodeHash:  hash,
			CreatedAt: now,
		}
	}

	encryptedSecret, err := s.encryptSecret(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("encrypt TOTP secret: %w", err)
	}

	// Re-running setup replaces any previous unconfirmed enrollment.
	if err := s.secrets.DeleteAllByUserID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.recoveryCodes.DeleteAllByUserID(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.secrets.Create(ctx, &domain.MFASecret{
		ID:              uuid.New(),
		UserID:          userID,
		Method:          domain.MFAMethodTOTP,
		SecretEncrypted: encryptedSecret,
		CreatedAt:       now,
	}); err != nil {
		return nil, err
	}
	if err := s.recoveryCodes.CreateBatch(ctx, hashedCodes); err != nil {
		return nil, err
	}

	return &domain.MFASetupResponse{
		Secret:        key.Secret(),
		QRCodeDataURI: qrDataURI,
		RecoveryCodes: plainCodes,
	}, nil
}

// VerifyAndEnable verifies a TOTP code against the pending enrollment
// and flips the user's MFA flag.
func (s *MFAService) VerifyAndEnable(ctx context.Context, userID uuid.UUID, code string) error {
	if err := s.VerifyCode(ctx, userID, code); err != nil {
		return err
	}
	return s.users.SetMFAEnabled(ctx, userID, true)
}

// VerifyCode validates a TOTP code for a user.
func (s *MFAService) VerifyCode(ctx context.Context, userID uuid.UUID, code string) error {
	secret, err := s.secrets.GetByUserIDAndMethod(ctx, userID, domain.MFAMethodTOTP)
	if err != nil {
		return err
	}

	plaintext, err := s.decryptSecret(secret.SecretEncrypted)
	if err != nil {
		return fmt.Errorf("decrypt TOTP secret: %w", err)
	}

	valid, err := totp.ValidateCustom(code, plaintext, time.Now(), totp.ValidateOpts{
		Period: totpPeriod,
		Skew:   totpWindow,
		Digits: otp.DigitsSix,
	})
	if err != nil {
		return err
	}
	if !valid {
		return domain.ErrInvalidMFACode
	}
	return nil
}

// ConsumeRecoveryCode verifies a backup code and marks it used. Each
// code works at most once.
func (s *MFAService) ConsumeRecoveryCode(ctx context.Context, userID uuid.UUID, code string) error {
	codes, err := s.recoveryCodes.ListUnusedByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, rc := range codes {
		if VerifySecret(code, rc.CodeHash) {
			return s.recoveryCodes.MarkUsed(ctx, rc.ID)
		}
	}
	return domain.ErrInvalidRecoveryCode
}

// Disable removes all MFA material for a user and clears the flag.
func (s *MFAService) Disable(ctx context.Context, userID uuid.UUID) error {
	if err := s.secrets.DeleteAllByUserID(ctx, userID); err != nil {
		return err
	}
	if err := s.recoveryCodes.DeleteAllByUserID(ctx, userID); err != nil {
		return err
	}
	return s.users.SetMFAEnabled(ctx, userID, false)
}

// generateRecoveryCode produces a code like "A2C4-F6H8-K3M5".
func generateRecoveryCode() (string, error) {
	raw := make([]byte, recoveryCodeLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	code := make([]byte, 0, recoveryCodeLength+2)
	for i, b := range raw {
		if i > 0 && i%4 == 0 {
			code = append(code, '-')
		}
		code = append(code, recoveryCodeChars[int(b)%len(recoveryCodeChars)])
	}
	return string(code), nil
}

// encryptSecret encrypts a TOTP secret with AES-256-GCM for storage.
func (s *MFAService) encryptSecret(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *MFAService) decryptSecret(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
