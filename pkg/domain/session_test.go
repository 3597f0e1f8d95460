package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSession_IsActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{
			name:    "active session",
			session: Session{ExpiresAt: now.Add(time.Hour)},
			want:    true,
		},
		{
			name:    "expired session",
			session: Session{ExpiresAt: now.Add(-time.Second)},
			want:    false,
		},
		{
			name:    "expiry exactly now",
			session: Session{ExpiresAt: now},
			want:    false,
		},
		{
			name:    "revoked session",
			session: Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked},
			want:    false,
		},
		{
			name:    "no expiry set",
			session: Session{},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.IsActive(now); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefreshToken_IsFresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	then := now.Add(-time.Minute)

	base := RefreshToken{
		ID:        uuid.New(),
		ExpiresAt: now.Add(time.Hour),
	}

	rotated := base
	rotated.RotatedAt = &then

	revoked := base
	revoked.RevokedAt = &then

	expired := base
	expired.ExpiresAt = now.Add(-time.Second)

	tests := []struct {
		name  string
		token RefreshToken
		want  bool
	}{
		{"fresh token", base, true},
		{"rotated token", rotated, false},
		{"revoked token", revoked, false},
		{"expired token", expired, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.IsFresh(now); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}
