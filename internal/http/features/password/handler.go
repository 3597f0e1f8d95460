package password

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/introspect-app/authcore/internal/http/features/common"
	"github.com/introspect-app/authcore/internal/httputil"
	"github.com/introspect-app/authcore/internal/metrics"
	"github.com/introspect-app/authcore/pkg/auth"
	"github.com/introspect-app/authcore/pkg/domain"
)

// Handler handles primary (password) authentication endpoints.
type Handler struct {
	logger          *slog.Logger
	passwordService *auth.PasswordService
	sessionService  *auth.SessionService
	refreshService  *auth.RefreshService
	mfaService      *auth.MFAService
	cookieConfig    httputil.CookieConfig
}

// NewHandler creates a new password handler.
func NewHandler(logger *slog.Logger, passwordService *auth.PasswordService, sessionService *auth.SessionService, refreshService *auth.RefreshService, mfaService *auth.MFAService) *Handler {
	return &Handler{
		logger:          logger,
		passwordService: passwordService,
		sessionService:  sessionService,
		refreshService:  refreshService,
		mfaService:      mfaService,
		cookieConfig:    httputil.DefaultCookieConfig(),
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a login request. MFACode or RecoveryCode is
// required when the account has MFA enabled.
type LoginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	MFACode      string `json:"mfa_code,omitempty"`
	RecoveryCode string `json:"recovery_code,omitempty"`
}

// Register handles user registration.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.passwordService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			httputil.Error(w, http.StatusConflict, "user already exists")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.issue(w, r, user, false)
}

// Login handles password login, including the MFA step for enrolled
// accounts.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.passwordService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, domain.ErrInvalidCredentials) {
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	mfaVerified := false
	if user.MFAEnabled {
		if h.mfaService == nil {
			httputil.Error(w, http.StatusInternalServerError, "login failed")
			return
		}
		switch {
		case req.MFACode != "":
			err = h.mfaService.VerifyCode(r.Context(), user.ID, req.MFACode)
		case req.RecoveryCode != "":
			err = h.mfaService.ConsumeRecoveryCode(r.Context(), user.ID, req.RecoveryCode)
		default:
			metrics.LoginAttempts.WithLabelValues("mfa_required").Inc()
			httputil.Error(w, http.StatusUnauthorized, "mfa code required")
			return
		}
		if err != nil {
			metrics.LoginAttempts.WithLabelValues("failure").Inc()
			httputil.Error(w, http.StatusUnauthorized, "invalid mfa code")
			return
		}
		mfaVerified = true
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	h.issue(w, r, user, mfaVerified)
}

// issue creates a session, the first refresh token of its chain, and
// an access token, then writes them out.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, user *domain.User, mfaVerified bool) {
	session, err := h.sessionService.Create(r.Context(), user.ID, auth.SessionOpts{
		IP:          r.RemoteAddr,
		UserAgent:   r.UserAgent(),
		MFAVerified: mfaVerified,
	})
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	tokens, err := h.refreshService.Issue(r.Context(), session)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to issue tokens")
		return
	}

	common.WriteTokenPair(w, r, tokens, h.refreshService.AccessTTL(), h.refreshService.TTL(), h.cookieConfig)
}
