package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/introspect-app/authcore/pkg/domain"
)

// fakeSessionStore is an in-memory SessionStore.
type fakeSessionStore struct {
	sessions map[uuid.UUID]*domain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (f *fakeSessionStore) Create(_ context.Context, session *domain.Session) error {
	cp := *session
	f.sessions[session.ID] = &cp
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (f *fakeSessionStore) ListActiveByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	var out []*domain.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) UpdateLastSeen(_ context.Context, id uuid.UUID, now time.Time) error {
	if s, ok := f.sessions[id]; ok {
		s.LastSeenAt = &now
	}
	return nil
}

func (f *fakeSessionStore) Revoke(_ context.Context, id uuid.UUID, now time.Time) error {
	if s, ok := f.sessions[id]; ok && s.RevokedAt == nil {
		s.RevokedAt = &now
	}
	return nil
}

func (f *fakeSessionStore) RevokeAllByUserID(_ context.Context, userID uuid.UUID, now time.Time) error {
	for _, s := range f.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

// fakeTokenStore is an in-memory TokenStore with the same atomicity
// semantics as the SQL-backed rotation store.
type fakeTokenStore struct {
	tokens   map[uuid.UUID]*domain.RefreshToken
	sessions *fakeSessionStore

	// rotateErr, when set, is returned from Rotate to simulate losing
	// a concurrent rotation.
	rotateErr error
}

func newFakeTokenStore(sessions *fakeSessionStore) *fakeTokenStore {
	return &fakeTokenStore{
		tokens:   make(map[uuid.UUID]*domain.RefreshToken),
		sessions: sessions,
	}
}

func (f *fakeTokenStore) Create(_ context.Context, token *domain.RefreshToken) error {
	cp := *token
	f.tokens[token.ID] = &cp
	return nil
}

func (f *fakeTokenStore) GetByLookupHash(_ context.Context, lookupHash string) (*domain.RefreshToken, error) {
	for _, tok := range f.tokens {
		if tok.LookupHash == lookupHash {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, domain.ErrTokenNotFound
}

func (f *fakeTokenStore) MarkRevoked(_ context.Context, id uuid.UUID, now time.Time) error {
	if tok, ok := f.tokens[id]; ok && tok.RevokedAt == nil {
		tok.RevokedAt = &now
	}
	return nil
}

func (f *fakeTokenStore) RevokeAllBySessionID(_ context.Context, sessionID uuid.UUID, now time.Time) error {
	for _, tok := range f.tokens {
		if tok.SessionID == sessionID && tok.RevokedAt == nil {
			tok.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeTokenStore) ListBySessionID(_ context.Context, sessionID uuid.UUID) ([]*domain.RefreshToken, error) {
	var out []*domain.RefreshToken
	for _, tok := range f.tokens {
		if tok.SessionID == sessionID {
			cp := *tok
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeTokenStore) Rotate(_ context.Context, parentID uuid.UUID, child *domain.RefreshToken, now time.Time) error {
	if f.rotateErr != nil {
		return f.rotateErr
	}
	parent, ok := f.tokens[parentID]
	if !ok || parent.RotatedAt != nil || parent.RevokedAt != nil {
		return domain.ErrReuseDetected
	}
	parent.RotatedAt = &now
	cp := *child
	f.tokens[child.ID] = &cp
	return nil
}

func (f *fakeTokenStore) CascadeRevoke(ctx context.Context, tokenID, sessionID uuid.UUID, now time.Time) error {
	if tok, ok := f.tokens[tokenID]; ok {
		tok.ReusedAt = &now
		if tok.RevokedAt == nil {
			tok.RevokedAt = &now
		}
	}
	if err := f.RevokeAllBySessionID(ctx, sessionID, now); err != nil {
		return err
	}
	return f.sessions.Revoke(ctx, sessionID, now)
}

// freshCount counts tokens in a session's chain that are neither
// rotated nor revoked.
func (f *fakeTokenStore) freshCount(sessionID uuid.UUID) int {
	n := 0
	for _, tok := range f.tokens {
		if tok.SessionID == sessionID && tok.RotatedAt == nil && tok.RevokedAt == nil {
			n++
		}
	}
	return n
}

type refreshFixture struct {
	service  *RefreshService
	sessions *SessionService
	store    *fakeTokenStore
	session  *domain.Session
}

func newRefreshFixture(t *testing.T) *refreshFixture {
	t.Helper()

	sessionStore := newFakeSessionStore()
	tokenStore := newFakeTokenStore(sessionStore)
	sessions := NewSessionService(SessionConfig{}, sessionStore)
	issuer := newTestIssuer(15 * time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewRefreshService(RefreshConfig{
		TTL:       30 * 24 * time.Hour,
		LookupKey: []byte("test-lookup-key"),
	}, tokenStore, sessions, issuer, logger)

	session, err := sessions.Create(context.Background(), uuid.New(), SessionOpts{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	return &refreshFixture{
		service:  service,
		sessions: sessions,
		store:    tokenStore,
		session:  session,
	}
}

func TestRefreshService_IssueAndRotate(t *testing.T) {
	fx := newRefreshFixture(t)
	ctx := context.Background()

	pair, err := fx.service.Issue(ctx, fx.session)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("Issue returned empty tokens")
	}

	// Rotate a few times; exactly one usable token must exist in the
	// chain after each exchange.
	secret := pair.RefreshToken
	for i := 0; i < 3; i++ {
		next, err := fx.service.Rotate(ctx, secret)
		if err != nil {
			t.Fatalf("Rotate %d: %v", i, err)
		}
		if next.RefreshToken == secret {
			t.Fatal("rotation returned the same secret")
		}
		if got := fx.store.freshCount(fx.session.ID); got != 1 {
			t.Fatalf("fresh tokens after rotation %d = %d, want 1", i, got)
		}
		secret = next.RefreshToken
	}
}

func TestRefreshService_Rotate_UnknownSecret(t *testing.T) {
	fx := newRefreshFixture(t)

	_, err := fx.service.Rotate(context.Background(), "no-such-token")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Rotate unknown secret = %v, want ErrInvalidCredentials", err)
	}

	_, err = fx.service.Rotate(context.Background(), "")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Rotate empty secret = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshService_Rotate_ReuseCascade(t *testing.T) {
	fx := newRefreshFixture(t)
	ctx := context.Background()

	pairA, err := fx.service.Issue(ctx, fx.session)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	pairB, err := fx.service.Rotate(ctx, pairA.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate A: %v", err)
	}
	pairC, err := fx.service.Rotate(ctx, pairB.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate B: %v", err)
	}

	// Presenting the already-rotated A must revoke the whole chain and
	// the session.
	if _, err := fx.service.Rotate(ctx, pairA.RefreshToken); !errors.Is(err, domain.ErrReuseDetected) {
		t.Fatalf("Rotate reused A = %v, want ErrReuseDetected", err)
	}

	if got := fx.store.freshCount(fx.session.ID); got != 0 {
		t.Errorf("fresh tokens after cascade = %d, want 0", got)
	}
	session, err := fx.sessions.Get(ctx, fx.session.ID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if session.IsActive(time.Now()) {
		t.Error("session still active after cascade revocation")
	}

	// The still-unused C is dead too.
	if _, err := fx.service.Rotate(ctx, pairC.RefreshToken); err == nil {
		t.Error("rotating C after cascade succeeded, want failure")
	}
}

func TestRefreshService_Rotate_Expired(t *testing.T) {
	fx := newRefreshFixture(t)
	ctx := context.Background()

	pair, err := fx.service.Issue(ctx, fx.session)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	fx.service.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	if _, err := fx.service.Rotate(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("Rotate expired = %v, want ErrTokenExpired", err)
	}

	// The expired token was revoked on presentation; a second attempt
	// takes the reuse path.
	if _, err := fx.service.Rotate(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrReuseDetected) {
		t.Errorf("second Rotate of expired token = %v, want ErrReuseDetected", err)
	}
}

func TestRefreshService_Rotate_SessionRevoked(t *testing.T) {
	fx := newRefreshFixture(t)
	ctx := context.Background()

	pair, err := fx.service.Issue(ctx, fx.session)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := fx.sessions.Revoke(ctx, fx.session.ID); err != nil {
		t.Fatalf("Revoke session: %v", err)
	}

	if _, err := fx.service.Rotate(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrSessionInactive) {
		t.Errorf("Rotate with revoked session = %v, want ErrSessionInactive", err)
	}
	if got := fx.store.freshCount(fx.session.ID); got != 0 {
		t.Errorf("fresh tokens after rejection = %d, want 0", got)
	}
}

func TestRefreshService_Rotate_ConcurrentLoser(t *testing.T) {
	fx := newRefreshFixture(t)
	ctx := context.Background()

	pair, err := fx.service.Issue(ctx, fx.session)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// The store reports the parent already rotated, as it would when a
	// concurrent request won the guarded update.
	fx.store.rotateErr = domain.ErrReuseDetected
	if _, err := fx.service.Rotate(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrReuseDetected) {
		t.Fatalf("Rotate as race loser = %v, want ErrReuseDetected", err)
	}

	session, err := fx.sessions.Get(ctx, fx.session.ID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if session.RevokedAt == nil {
		t.Error("session not revoked after race-loser reuse response")
	}
}

func TestRefreshService_Logout(t *testing.T) {
	fx := newRefreshFixture(t)
	ctx := context.Background()

	pair, err := fx.service.Issue(ctx, fx.session)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := fx.service.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got := fx.store.freshCount(fx.session.ID); got != 0 {
		t.Errorf("fresh tokens after logout = %d, want 0", got)
	}
	session, err := fx.sessions.Get(ctx, fx.session.ID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if session.RevokedAt == nil {
		t.Error("session not revoked by logout")
	}
}

func TestRefreshService_Logout_UnknownSecret(t *testing.T) {
	fx := newRefreshFixture(t)

	if err := fx.service.Logout(context.Background(), "never-issued"); err != nil {
		t.Errorf("Logout of unknown secret = %v, want nil", err)
	}
}
