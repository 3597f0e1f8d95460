package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/introspect-app/authcore/internal/http/features/mfa"
	"github.com/introspect-app/authcore/internal/http/features/password"
	"github.com/introspect-app/authcore/internal/http/features/session"
	webauthnfeature "github.com/introspect-app/authcore/internal/http/features/webauthn"
	"github.com/introspect-app/authcore/internal/http/middleware"
	"github.com/introspect-app/authcore/internal/httputil"
	"github.com/introspect-app/authcore/pkg/auth"
	"github.com/introspect-app/authcore/pkg/webauthn"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	PasswordService *auth.PasswordService
	SessionService  *auth.SessionService
	RefreshService  *auth.RefreshService
	TokenIssuer     *auth.TokenIssuer
	WebAuthnService *webauthn.Service
	MFAService      *auth.MFAService

	RateLimitEnabled         bool
	AuthRequestsPerMinute    int
	RefreshRequestsPerMinute int
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Health check and metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	authLimiter := middleware.NoRateLimit()
	refreshLimiter := middleware.NoRateLimit()
	if cfg.RateLimitEnabled {
		authLimiter = middleware.RateLimit(middleware.RateLimitConfig{
			Requests: cfg.AuthRequestsPerMinute,
			Window:   time.Minute,
			Logger:   cfg.Logger,
		})
		refreshLimiter = middleware.RateLimit(middleware.RateLimitConfig{
			Requests: cfg.RefreshRequestsPerMinute,
			Window:   time.Minute,
			Logger:   cfg.Logger,
		})
	}

	requireAuth := middleware.Auth(cfg.TokenIssuer)

	// Primary (password) authentication routes
	passwordHandler := password.NewHandler(
		cfg.Logger,
		cfg.PasswordService,
		cfg.SessionService,
		cfg.RefreshService,
		cfg.MFAService,
	)
	r.Group(func(r chi.Router) {
		r.Use(authLimiter)
		r.Post("/v1/auth/register", passwordHandler.Register)
		r.Post("/v1/auth/login", passwordHandler.Login)
	})

	// Session and token renewal routes
	sessionHandler := session.NewHandler(cfg.SessionService, cfg.RefreshService)
	r.Group(func(r chi.Router) {
		r.Use(refreshLimiter)
		r.Post("/v1/auth/refresh", sessionHandler.Refresh)
	})
	r.Post("/v1/auth/logout", sessionHandler.Logout)
	r.With(requireAuth).Post("/v1/auth/logout/all", sessionHandler.LogoutAll)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/v1/me/sessions", sessionHandler.List)
		r.Delete("/v1/me/sessions/{sessionID}", sessionHandler.Revoke)
	})

	// WebAuthn ceremony routes
	webauthnHandler := webauthnfeature.NewHandler(
		cfg.Logger,
		cfg.WebAuthnService,
		cfg.SessionService,
		cfg.RefreshService,
	)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/v1/webauthn/register/begin", webauthnHandler.BeginRegistration)
		r.Post("/v1/webauthn/register/finish", webauthnHandler.FinishRegistration)
		r.Get("/v1/me/credentials", webauthnHandler.ListCredentials)
		r.Delete("/v1/me/credentials/{credentialID}", webauthnHandler.Unregister)
	})
	r.Group(func(r chi.Router) {
		r.Use(authLimiter)
		r.Post("/v1/webauthn/login/begin", webauthnHandler.BeginLogin)
		r.Post("/v1/webauthn/login/finish", webauthnHandler.FinishLogin)
	})

	// MFA routes (if MFA service is configured)
	if cfg.MFAService != nil {
		mfaHandler := mfa.NewHandler(cfg.MFAService, cfg.PasswordService)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/v1/me/mfa", mfaHandler.Status)
			r.Post("/v1/me/mfa/setup", mfaHandler.Setup)
			r.Post("/v1/me/mfa/enable", mfaHandler.Enable)
			r.Post("/v1/me/mfa/disable", mfaHandler.Disable)
		})
	}

	return r
}
