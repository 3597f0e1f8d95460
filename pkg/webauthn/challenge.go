package webauthn

import (
	"context"
	"sync"
	"time"
)

// DefaultChallengeTTL is how long an issued challenge stays consumable.
const DefaultChallengeTTL = 120 * time.Second

// ChallengeStore issues and single-consumes short-lived random
// challenges keyed by a ceremony context string. Take removes the entry
// whatever the subsequent verification outcome, so a challenge can
// never be replayed.
type ChallengeStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Take returns the stored value and deletes it. The second return is
	// false when the key is absent or expired.
	Take(ctx context.Context, key string) ([]byte, bool, error)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local ChallengeStore. In a horizontally
// scaled deployment both ceremony steps must reach the same process, or
// the store must be swapped for RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Put stores a challenge under key, replacing any previous one.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	s.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Take consumes a challenge. The entry is removed even when expired.
func (s *MemoryStore) Take(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, key)
	if s.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// purgeLocked drops expired entries. Called opportunistically on Put;
// callers hold s.mu.
func (s *MemoryStore) purgeLocked() {
	now := s.now()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}
