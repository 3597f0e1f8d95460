package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

func TestSessionService_CreateAndGet(t *testing.T) {
	store := newFakeSessionStore()
	service := NewSessionService(SessionConfig{SessionTTL: time.Hour}, store)
	userID := uuid.New()

	session, err := service.Create(context.Background(), userID, SessionOpts{
		IP:          "203.0.113.7",
		UserAgent:   "test-agent",
		MFAVerified: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !session.IsActive(time.Now()) {
		t.Error("new session is not active")
	}

	got, err := service.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != userID || got.IP != "203.0.113.7" || !got.MFAVerified {
		t.Errorf("Get returned %+v", got)
	}

	if _, err := service.Get(context.Background(), uuid.New()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Get missing = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionService_Touch_Throttled(t *testing.T) {
	store := newFakeSessionStore()
	service := NewSessionService(SessionConfig{
		SessionTTL:    time.Hour,
		TouchInterval: 5 * time.Minute,
	}, store)

	base := time.Now()
	service.now = func() time.Time { return base }

	session, err := service.Create(context.Background(), uuid.New(), SessionOpts{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	firstSeen := *session.LastSeenAt

	// Within the interval: no write.
	service.now = func() time.Time { return base.Add(time.Minute) }
	if err := service.Touch(context.Background(), session); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if !session.LastSeenAt.Equal(firstSeen) {
		t.Error("touch within interval updated last_seen_at")
	}

	// Past the interval: the timestamp advances.
	service.now = func() time.Time { return base.Add(6 * time.Minute) }
	if err := service.Touch(context.Background(), session); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if session.LastSeenAt.Equal(firstSeen) {
		t.Error("touch past interval did not update last_seen_at")
	}
	stored, err := service.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stored.LastSeenAt.Equal(*session.LastSeenAt) {
		t.Error("stored last_seen_at does not match")
	}
}

func TestSessionService_Revoke(t *testing.T) {
	store := newFakeSessionStore()
	service := NewSessionService(SessionConfig{SessionTTL: time.Hour}, store)

	session, err := service.Create(context.Background(), uuid.New(), SessionOpts{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := service.Revoke(context.Background(), session.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	got, err := service.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.IsActive(time.Now()) {
		t.Error("revoked session reports active")
	}

	// Revoking again is a no-op.
	if err := service.Revoke(context.Background(), session.ID); err != nil {
		t.Errorf("second Revoke = %v, want nil", err)
	}
}

func TestSessionService_RevokeAllForUser(t *testing.T) {
	store := newFakeSessionStore()
	service := NewSessionService(SessionConfig{SessionTTL: time.Hour}, store)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := service.Create(context.Background(), userID, SessionOpts{}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	other, err := service.Create(context.Background(), uuid.New(), SessionOpts{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := service.RevokeAllForUser(context.Background(), userID); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}

	active, err := service.ListActive(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active sessions after revoke all = %d, want 0", len(active))
	}

	// Another user's session is untouched.
	got, err := service.Get(context.Background(), other.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RevokedAt != nil {
		t.Error("unrelated session was revoked")
	}
}
