package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default backend when no external store is configured.
//
// A single mutex serializes all mutations, which trivially satisfies the
// per-record serialization contract. Expired records are treated as absent
// on every read and removed lazily, so memory stays bounded even without a
// sweeper.
type MemoryStore struct {
	mu           sync.Mutex
	byDigest     map[string]Record
	digestByCSRF map[string]string
}

// NewMemoryStore constructs an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDigest:     make(map[string]Record),
		digestByCSRF: make(map[string]string),
	}
}

// Create inserts a record, enforcing identifier and CSRF uniqueness.
func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byDigest[rec.IdentifierDigest]; ok {
		if existing.ExpiresAt.After(rec.CreatedAt) {
			return ErrDuplicateIdentifier
		}
		// Collision with an expired leftover: reap it and proceed.
		s.removeLocked(existing)
	}
	if digest, ok := s.digestByCSRF[rec.CSRFToken]; ok {
		if existing, live := s.byDigest[digest]; live {
			if existing.ExpiresAt.After(rec.CreatedAt) {
				return ErrDuplicateCSRFToken
			}
			s.removeLocked(existing)
		} else {
			delete(s.digestByCSRF, rec.CSRFToken)
		}
	}

	s.byDigest[rec.IdentifierDigest] = rec
	s.digestByCSRF[rec.CSRFToken] = rec.IdentifierDigest
	return nil
}

// Get loads a live record; expired records are reaped and reported absent.
func (s *MemoryStore) Get(ctx context.Context, digest string, now time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.liveLocked(digest, now)
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Touch advances the refresh timestamp and expiry of a live record.
func (s *MemoryStore) Touch(ctx context.Context, digest string, now, expiresAt time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.liveLocked(digest, now)
	if !ok {
		return Record{}, ErrNotFound
	}

	rec.LastRefreshedAt = now
	rec.ExpiresAt = expiresAt
	s.byDigest[digest] = rec
	return rec, nil
}

// Delete removes a live record permanently. Exactly one concurrent delete
// of the same record succeeds; later ones observe ErrNotFound.
func (s *MemoryStore) Delete(ctx context.Context, digest string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.liveLocked(digest, now)
	if !ok {
		return ErrNotFound
	}
	s.removeLocked(rec)
	return nil
}

// Sweep reaps every expired record.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, rec := range s.byDigest {
		if !rec.ExpiresAt.After(now) {
			s.removeLocked(rec)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// Len reports the number of records currently held, including expired ones
// not yet reaped. Intended for tests and diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byDigest)
}

// liveLocked resolves a digest to a live record, reaping expired leftovers.
// Caller must hold s.mu.
func (s *MemoryStore) liveLocked(digest string, now time.Time) (Record, bool) {
	rec, ok := s.byDigest[digest]
	if !ok {
		return Record{}, false
	}
	if !rec.ExpiresAt.After(now) {
		s.removeLocked(rec)
		return Record{}, false
	}
	return rec, true
}

// removeLocked drops a record from both indexes. Caller must hold s.mu.
func (s *MemoryStore) removeLocked(rec Record) {
	delete(s.byDigest, rec.IdentifierDigest)
	if digest, ok := s.digestByCSRF[rec.CSRFToken]; ok && digest == rec.IdentifierDigest {
		delete(s.digestByCSRF, rec.CSRFToken)
	}
}
