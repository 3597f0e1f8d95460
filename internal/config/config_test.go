package config

import (
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("TOKEN_LOOKUP_KEY", "test-lookup-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	// Clear any other env vars that might interfere
	envVars := []string{
		"SERVER_ADDR", "SERVER_PORT", "DB_HOST", "DB_PORT", "DB_USER",
		"DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "ACCESS_TOKEN_TTL",
		"REFRESH_TOKEN_TTL", "SESSION_TTL", "CHALLENGE_TTL", "RP_ID",
		"REDIS_ADDR", "MFA_ENCRYPTION_KEY",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "0.0.0.0")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want %v", cfg.AccessTokenTTL, 15*time.Minute)
	}
	if cfg.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want %v", cfg.RefreshTokenTTL, 30*24*time.Hour)
	}
	if cfg.ChallengeTTL != 120*time.Second {
		t.Errorf("ChallengeTTL = %v, want %v", cfg.ChallengeTTL, 120*time.Second)
	}
	if cfg.RPID != "localhost" {
		t.Errorf("RPID = %q, want %q", cfg.RPID, "localhost")
	}
	if cfg.HasMFA() {
		t.Error("HasMFA = true with no key configured")
	}
}

func TestLoad_RequiredKeys(t *testing.T) {
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("TOKEN_LOOKUP_KEY")

	if _, err := Load(); err == nil {
		t.Error("Load should fail when JWT_SECRET is not set")
	}

	t.Setenv("JWT_SECRET", "test-secret-key")
	if _, err := Load(); err == nil {
		t.Error("Load should fail when TOKEN_LOOKUP_KEY is not set")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("CHALLENGE_TTL", "60s")
	t.Setenv("RP_ID", "auth.example.com")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 5m", cfg.AccessTokenTTL)
	}
	if cfg.ChallengeTTL != 60*time.Second {
		t.Errorf("ChallengeTTL = %v, want 60s", cfg.ChallengeTTL)
	}
	if cfg.RPID != "auth.example.com" {
		t.Errorf("RPID = %q, want %q", cfg.RPID, "auth.example.com")
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, "localhost:6379")
	}
}

func TestMFAKey(t *testing.T) {
	setRequired(t)

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid 64-char hex", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", false},
		{"too short", "0123456789abcdef", true},
		{"not hex", "zz23456789abcdefzz23456789abcdefzz23456789abcdefzz23456789abcdef", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MFA_ENCRYPTION_KEY", tt.value)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !cfg.HasMFA() {
				t.Fatal("HasMFA = false with key configured")
			}
			key, err := cfg.MFAKey()
			if (err != nil) != tt.wantErr {
				t.Errorf("MFAKey err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(key) != 32 {
				t.Errorf("key length = %d, want 32", len(key))
			}
		})
	}
}
