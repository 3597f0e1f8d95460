package mfa

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/introspect-app/authcore/internal/http/middleware"
	"github.com/introspect-app/authcore/internal/httputil"
	"github.com/introspect-app/authcore/pkg/auth"
	"github.com/introspect-app/authcore/pkg/domain"
)

// Handler handles TOTP enrollment endpoints. All routes require
// authentication.
type Handler struct {
	mfaService      *auth.MFAService
	passwordService *auth.PasswordService
}

// NewHandler creates a new MFA handler.
func NewHandler(mfaService *auth.MFAService, passwordService *auth.PasswordService) *Handler {
	return &Handler{
		mfaService:      mfaService,
		passwordService: passwordService,
	}
}

// VerifyRequest carries a TOTP code.
type VerifyRequest struct {
	Code string `json:"code"`
}

// StatusResponse reports whether MFA is enabled for the current user.
type StatusResponse struct {
	Enabled bool `json:"enabled"`
}

// Setup generates a pending TOTP enrollment and recovery codes.
// POST /v1/me/mfa/setup
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, err := h.mfaService.Setup(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrMFAAlreadyEnabled) {
			httputil.Error(w, http.StatusConflict, "mfa already enabled")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to set up mfa")
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Enable confirms a pending enrollment with a TOTP code.
// POST /v1/me/mfa/enable
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.mfaService.VerifyAndEnable(r.Context(), userID, req.Code); err != nil {
		if errors.Is(err, domain.ErrInvalidMFACode) {
			httputil.Error(w, http.StatusUnauthorized, "invalid mfa code")
			return
		}
		if errors.Is(err, domain.ErrMFANotEnabled) {
			httputil.Error(w, http.StatusBadRequest, "mfa setup required first")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to enable mfa")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Disable removes all MFA material. A current TOTP or recovery code is
// required, so a stolen access token alone cannot weaken the account.
// POST /v1/me/mfa/disable
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.mfaService.VerifyCode(r.Context(), userID, req.Code); err != nil {
		if err := h.mfaService.ConsumeRecoveryCode(r.Context(), userID, req.Code); err != nil {
			httputil.Error(w, http.StatusUnauthorized, "invalid mfa code")
			return
		}
	}

	if err := h.mfaService.Disable(r.Context(), userID); err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to disable mfa")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status reports the current user's MFA state.
// GET /v1/me/mfa
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.passwordService.GetUser(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to load mfa status")
		return
	}
	httputil.JSON(w, http.StatusOK, StatusResponse{Enabled: user.MFAEnabled})
}
