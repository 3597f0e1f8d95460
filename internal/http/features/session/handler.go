package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/introspect-app/authcore/internal/http/features/common"
	"github.com/introspect-app/authcore/internal/http/middleware"
	"github.com/introspect-app/authcore/internal/httputil"
	"github.com/introspect-app/authcore/internal/metrics"
	"github.com/introspect-app/authcore/pkg/auth"
	"github.com/introspect-app/authcore/pkg/domain"
)

// Handler handles session and token renewal endpoints.
type Handler struct {
	sessionService *auth.SessionService
	refreshService *auth.RefreshService
	cookieConfig   httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(sessionService *auth.SessionService, refreshService *auth.RefreshService) *Handler {
	return &Handler{
		sessionService: sessionService,
		refreshService: refreshService,
		cookieConfig:   httputil.DefaultCookieConfig(),
	}
}

// RefreshRequest represents a token refresh request (for mobile clients).
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest represents a logout request (for mobile clients).
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionResponse describes one active session.
type SessionResponse struct {
	ID         string  `json:"id"`
	CreatedAt  string  `json:"created_at"`
	LastSeenAt *string `json:"last_seen_at,omitempty"`
	IP         string  `json:"ip,omitempty"`
	UserAgent  string  `json:"user_agent,omitempty"`
	Current    bool    `json:"current"`
}

// Refresh exchanges a refresh token for its successor plus a new access
// token.
// POST /v1/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var bodyToken string
	if httputil.IsMobileClient(r) {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		bodyToken = req.RefreshToken
	}

	refreshToken, ok := common.ReadRefreshToken(r, bodyToken)
	if !ok {
		if httputil.IsMobileClient(r) {
			httputil.Error(w, http.StatusBadRequest, "refresh_token is required")
		} else {
			httputil.Error(w, http.StatusUnauthorized, "refresh token not found")
		}
		return
	}

	tokens, err := h.refreshService.Rotate(r.Context(), refreshToken)
	if err != nil {
		h.writeRotateError(w, r, err)
		return
	}

	metrics.TokenRotations.Inc()
	common.WriteTokenPair(w, r, tokens, h.refreshService.AccessTTL(), h.refreshService.TTL(), h.cookieConfig)
}

func (h *Handler) writeRotateError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrReuseDetected) {
		metrics.RefreshReuseDetected.Inc()
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrReuseDetected),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrSessionInactive),
		errors.Is(err, domain.ErrSessionNotFound):
		// One generic body for every rejection: the response must not
		// reveal whether a presented secret ever existed.
		if !httputil.IsMobileClient(r) {
			httputil.ClearAuthCookies(w, h.cookieConfig)
		}
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired refresh token")
	default:
		httputil.Error(w, http.StatusInternalServerError, "failed to refresh token")
	}
}

// Logout revokes the presented token's session and its whole chain.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var bodyToken string
	if httputil.IsMobileClient(r) {
		var req LogoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		bodyToken = req.RefreshToken
	}

	if refreshToken, ok := common.ReadRefreshToken(r, bodyToken); ok {
		// Ignore errors so logout cannot be used for token enumeration.
		_ = h.refreshService.Logout(r.Context(), refreshToken)
	}

	if !httputil.IsMobileClient(r) {
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes every session for the current user.
// POST /v1/auth/logout/all (requires authentication)
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.sessionService.ListActive(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to logout all sessions")
		return
	}
	for _, s := range sessions {
		if err := h.refreshService.RevokeAllForSession(r.Context(), s.ID); err != nil {
			httputil.Error(w, http.StatusInternalServerError, "failed to logout all sessions")
			return
		}
	}
	if err := h.sessionService.RevokeAllForUser(r.Context(), userID); err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to logout all sessions")
		return
	}

	if !httputil.IsMobileClient(r) {
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}
	w.WriteHeader(http.StatusNoContent)
}

// List returns the current user's active sessions.
// GET /v1/me/sessions (requires authentication)
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	currentID, _ := middleware.GetSessionID(r.Context())

	sessions, err := h.sessionService.ListActive(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		item := SessionResponse{
			ID:        s.ID.String(),
			CreatedAt: s.CreatedAt.Format(time.RFC3339),
			IP:        s.IP,
			UserAgent: s.UserAgent,
			Current:   s.ID == currentID,
		}
		if s.LastSeenAt != nil {
			ts := s.LastSeenAt.Format(time.RFC3339)
			item.LastSeenAt = &ts
		}
		resp = append(resp, item)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Revoke revokes one of the current user's sessions and its token chain.
// DELETE /v1/me/sessions/{sessionID} (requires authentication)
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			httputil.Error(w, http.StatusNotFound, "session not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	if session.UserID != userID {
		// Same response as not-found: session ids are not enumerable.
		httputil.Error(w, http.StatusNotFound, "session not found")
		return
	}

	if err := h.refreshService.RevokeAllForSession(r.Context(), sessionID); err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	if err := h.sessionService.Revoke(r.Context(), sessionID); err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
