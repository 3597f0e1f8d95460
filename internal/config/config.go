package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Tokens and sessions
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SessionTTL      time.Duration
	TouchInterval   time.Duration
	// TokenLookupKey keys the refresh token index digest; must stay
	// stable across restarts.
	TokenLookupKey string

	// WebAuthn relying party
	RPID         string
	RPName       string
	RPOrigin     string
	ChallengeTTL time.Duration

	// Challenge store (optional; empty means in-process memory store)
	RedisAddr string

	// MFA (optional; enabled when the key is set)
	MFAEncryptionKey string

	// Rate limiting
	RateLimitEnabled         bool
	AuthRequestsPerMinute    int
	RefreshRequestsPerMinute int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "authcore"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "authcore"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		SessionTTL:      getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		TouchInterval:   getEnvDuration("SESSION_TOUCH_INTERVAL", 5*time.Minute),
		TokenLookupKey:  getEnv("TOKEN_LOOKUP_KEY", ""),

		RPID:         getEnv("RP_ID", "localhost"),
		RPName:       getEnv("RP_NAME", "authcore"),
		RPOrigin:     getEnv("RP_ORIGIN", "http://localhost:8080"),
		ChallengeTTL: getEnvDuration("CHALLENGE_TTL", 120*time.Second),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		MFAEncryptionKey: getEnv("MFA_ENCRYPTION_KEY", ""),

		RateLimitEnabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
		AuthRequestsPerMinute:    getEnvInt("RATE_LIMIT_AUTH_PER_MINUTE", 10),
		RefreshRequestsPerMinute: getEnvInt("RATE_LIMIT_REFRESH_PER_MINUTE", 30),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.TokenLookupKey == "" {
		return nil, fmt.Errorf("TOKEN_LOOKUP_KEY is required")
	}

	return cfg, nil
}

// HasMFA returns true if the MFA encryption key is configured.
func (c *Config) HasMFA() bool {
	return c.MFAEncryptionKey != ""
}

// MFAKey decodes the MFA encryption key, which must be 64 hex chars
// (32 bytes).
func (c *Config) MFAKey() ([]byte, error) {
	key, err := hex.DecodeString(c.MFAEncryptionKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be 64-char hex (32 bytes)")
	}
	return key, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
