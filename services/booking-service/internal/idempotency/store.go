// Package idempotency remembers the final response of a booking request under
// its Idempotency-Key so a client retrying after a timeout gets the original
// answer instead of a second booking attempt.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInProgress means another request holding the same key has not finished.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

type Record struct {
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	// Fingerprint identifies the request the answer belongs to.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Store is implemented by RedisStore and MemoryStore.
//
// Begin returns the stored record when the key already completed, claims the
// key and returns nil when it is new, and returns ErrInProgress when it is
// claimed but not completed.
type Store interface {
	Begin(ctx context.Context, key string) (*Record, error)
	Complete(ctx context.Context, key string, rec Record) error
	Abandon(ctx context.Context, key string) error
}

type memoryEntry struct {
	rec     *Record
	expires time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, entries: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryStore) Begin(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		if e.rec == nil {
			return nil, ErrInProgress
		}
		rec := *e.rec
		return &rec, nil
	}
	s.entries[key] = memoryEntry{expires: now.Add(pendingTTL)}
	return nil, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{rec: &rec, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Abandon(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
