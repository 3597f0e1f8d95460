package webauthn

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/introspect-app/authcore/internal/http/features/common"
	"github.com/introspect-app/authcore/internal/http/middleware"
	"github.com/introspect-app/authcore/internal/httputil"
	"github.com/introspect-app/authcore/internal/metrics"
	"github.com/introspect-app/authcore/pkg/auth"
	"github.com/introspect-app/authcore/pkg/domain"
	"github.com/introspect-app/authcore/pkg/webauthn"
)

// Handler handles WebAuthn ceremony endpoints.
type Handler struct {
	logger          *slog.Logger
	webauthnService *webauthn.Service
	sessionService  *auth.SessionService
	refreshService  *auth.RefreshService
	cookieConfig    httputil.CookieConfig
}

// NewHandler creates a new WebAuthn handler.
func NewHandler(logger *slog.Logger, webauthnService *webauthn.Service, sessionService *auth.SessionService, refreshService *auth.RefreshService) *Handler {
	return &Handler{
		logger:          logger,
		webauthnService: webauthnService,
		sessionService:  sessionService,
		refreshService:  refreshService,
		cookieConfig:    httputil.DefaultCookieConfig(),
	}
}

// FinishRegistrationRequest carries the authenticator's registration
// response. Binary fields are base64url without padding.
type FinishRegistrationRequest struct {
	CredentialID      string   `json:"credential_id"`
	AttestationObject string   `json:"attestation_object"`
	ClientDataJSON    string   `json:"client_data_json"`
	Transports        []string `json:"transports,omitempty"`
}

// BeginLoginRequest names the credential to authenticate with.
type BeginLoginRequest struct {
	CredentialID string `json:"credential_id"`
}

// FinishLoginRequest carries the authenticator's signed assertion.
// Binary fields are base64url without padding.
type FinishLoginRequest struct {
	CredentialID      string `json:"credential_id"`
	AuthenticatorData string `json:"authenticator_data"`
	ClientDataJSON    string `json:"client_data_json"`
	Signature         string `json:"signature"`
}

// CredentialResponse describes one registered credential.
type CredentialResponse struct {
	CredentialID    string   `json:"credential_id"`
	AttestationType string   `json:"attestation_type"`
	Transports      []string `json:"transports,omitempty"`
	SignCount       uint32   `json:"sign_count"`
	CreatedAt       string   `json:"created_at"`
	LastUsedAt      *string  `json:"last_used_at,omitempty"`
}

// BeginRegistration starts a registration ceremony for the current user.
// POST /v1/webauthn/register/begin (requires authentication)
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	options, err := h.webauthnService.BeginRegistration(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to begin registration")
		return
	}
	httputil.JSON(w, http.StatusOK, options)
}

// FinishRegistration completes a registration ceremony and stores the
// new credential.
// POST /v1/webauthn/register/finish (requires authentication)
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req FinishRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	attestation, err := base64.RawURLEncoding.DecodeString(req.AttestationObject)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid attestation_object encoding")
		return
	}
	clientData, err := base64.RawURLEncoding.DecodeString(req.ClientDataJSON)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid client_data_json encoding")
		return
	}

	cred, err := h.webauthnService.FinishRegistration(r.Context(), userID, req.CredentialID, attestation, clientData, req.Transports)
	if err != nil {
		h.writeCeremonyError(w, err, "failed to finish registration")
		return
	}
	httputil.JSON(w, http.StatusCreated, credentialResponse(cred))
}

// BeginLogin starts an authentication ceremony against a registered
// credential.
// POST /v1/webauthn/login/begin
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	var req BeginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CredentialID == "" {
		httputil.Error(w, http.StatusBadRequest, "credential_id is required")
		return
	}

	options, err := h.webauthnService.BeginAuthentication(r.Context(), req.CredentialID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			httputil.Error(w, http.StatusNotFound, "credential not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to begin authentication")
		return
	}
	httputil.JSON(w, http.StatusOK, options)
}

// FinishLogin verifies a signed assertion and, on success, opens a
// session and issues tokens just like a password login.
// POST /v1/webauthn/login/finish
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	var req FinishLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	authenticatorData, err := base64.RawURLEncoding.DecodeString(req.AuthenticatorData)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid authenticator_data encoding")
		return
	}
	clientData, err := base64.RawURLEncoding.DecodeString(req.ClientDataJSON)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid client_data_json encoding")
		return
	}
	signature, err := base64.RawURLEncoding.DecodeString(req.Signature)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid signature encoding")
		return
	}

	cred, err := h.webauthnService.FinishAuthentication(r.Context(), req.CredentialID, authenticatorData, clientData, signature)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		h.writeCeremonyError(w, err, "failed to finish authentication")
		return
	}

	// A possession-based authenticator assertion counts as a verified
	// second factor.
	session, err := h.sessionService.Create(r.Context(), cred.UserID, auth.SessionOpts{
		IP:          r.RemoteAddr,
		UserAgent:   r.UserAgent(),
		MFAVerified: true,
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

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	common.WriteTokenPair(w, r, tokens, h.refreshService.AccessTTL(), h.refreshService.TTL(), h.cookieConfig)
}

// ListCredentials lists the current user's registered credentials.
// GET /v1/me/credentials (requires authentication)
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	creds, err := h.webauthnService.Credentials(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to list credentials")
		return
	}

	resp := make([]CredentialResponse, 0, len(creds))
	for _, cred := range creds {
		resp = append(resp, credentialResponse(cred))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Unregister removes one of the current user's credentials. Removing a
// credential that is already gone still succeeds.
// DELETE /v1/me/credentials/{credentialID} (requires authentication)
func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	credentialID := chi.URLParam(r, "credentialID")
	if credentialID == "" {
		httputil.Error(w, http.StatusBadRequest, "credential id is required")
		return
	}

	if err := h.webauthnService.Unregister(r.Context(), userID, credentialID); err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to unregister credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCeremonyError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrCounterRegression):
		metrics.CounterRegression.Inc()
		httputil.Error(w, http.StatusUnauthorized, "assertion rejected")
	case errors.Is(err, domain.ErrChallengeExpired),
		errors.Is(err, domain.ErrChallengeMismatch),
		errors.Is(err, domain.ErrSignatureInvalid),
		errors.Is(err, domain.ErrCredentialNotFound):
		httputil.Error(w, http.StatusUnauthorized, "assertion rejected")
	case errors.Is(err, domain.ErrMalformedAssertion),
		errors.Is(err, domain.ErrUnsupportedKey):
		httputil.Error(w, http.StatusBadRequest, "malformed or unsupported credential")
	case errors.Is(err, domain.ErrDuplicateCredential):
		httputil.Error(w, http.StatusConflict, "credential already registered")
	default:
		httputil.Error(w, http.StatusInternalServerError, fallback)
	}
}

func credentialResponse(cred *domain.WebAuthnCredential) CredentialResponse {
	resp := CredentialResponse{
		CredentialID:    cred.CredentialID,
		AttestationType: cred.AttestationType,
		Transports:      cred.Transports,
		SignCount:       cred.SignCount,
		CreatedAt:       cred.CreatedAt.Format(time.RFC3339),
	}
	if cred.LastUsedAt != nil {
		ts := cred.LastUsedAt.Format(time.RFC3339)
		resp.LastUsedAt = &ts
	}
	return resp
}
