package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/introspect-app/authcore/internal/config"
	httpserver "github.com/introspect-app/authcore/internal/http"
	"github.com/introspect-app/authcore/pkg/auth"
	"github.com/introspect-app/authcore/pkg/repository"
	"github.com/introspect-app/authcore/pkg/webauthn"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)
	refreshTokensRepo := repository.NewRefreshTokensRepository(db)
	credentialsRepo := repository.NewCredentialsRepository(db)
	mfaSecretsRepo := repository.NewMFASecretsRepository(db)
	recoveryCodesRepo := repository.NewRecoveryCodesRepository(db)
	rotationStore := repository.NewRotationStore(db, refreshTokensRepo, sessionsRepo)

	// Initialize services
	passwordService := auth.NewPasswordService(usersRepo)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		SessionTTL:    cfg.SessionTTL,
		TouchInterval: cfg.TouchInterval,
	}, sessionsRepo)
	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		TTL:    cfg.AccessTokenTTL,
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
	})
	refreshService := auth.NewRefreshService(auth.RefreshConfig{
		TTL:       cfg.RefreshTokenTTL,
		LookupKey: []byte(cfg.TokenLookupKey),
	}, rotationStore, sessionService, tokenIssuer, logger)

	// Challenge store: Redis when configured, in-process memory otherwise
	var challengeStore webauthn.ChallengeStore
	if cfg.RedisAddr != "" {
		redisStore, err := webauthn.NewRedisStore(cfg.RedisAddr, "authcore:challenge:")
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		challengeStore = redisStore
		logger.Info("using redis challenge store", "addr", cfg.RedisAddr)
	} else {
		challengeStore = webauthn.NewMemoryStore()
		logger.Warn("using in-memory challenge store (not safe for multi-replica)")
	}

	webauthnService := webauthn.NewService(webauthn.Config{
		RPName:       cfg.RPName,
		RPID:         cfg.RPID,
		ChallengeTTL: cfg.ChallengeTTL,
	}, credentialsRepo, challengeStore, logger)

	// Initialize MFA service if configured
	var mfaService *auth.MFAService
	if cfg.HasMFA() {
		encryptionKey, err := cfg.MFAKey()
		if err != nil {
			logger.Error("invalid MFA encryption key", "error", err)
			os.Exit(1)
		}
		mfaService = auth.NewMFAService(auth.MFAConfig{
			Issuer:        cfg.JWTIssuer,
			EncryptionKey: encryptionKey,
		}, mfaSecretsRepo, recoveryCodesRepo, usersRepo)
		logger.Info("MFA service enabled")
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		PasswordService: passwordService,
		SessionService:  sessionService,
		RefreshService:  refreshService,
		TokenIssuer:     tokenIssuer,
		WebAuthnService: webauthnService,
		MFAService:      mfaService,

		RateLimitEnabled:         cfg.RateLimitEnabled,
		AuthRequestsPerMinute:    cfg.AuthRequestsPerMinute,
		RefreshRequestsPerMinute: cfg.RefreshRequestsPerMinute,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
