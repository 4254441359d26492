package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gatehouse/internal/identity"
	"gatehouse/internal/security/token"
)

type allowVerifier struct{}

func (allowVerifier) Verify(_ context.Context, creds identity.Credentials) (identity.Principal, error) {
	if creds.Password == "wrong" {
		return identity.Principal{}, identity.ErrInvalidCredentials
	}
	return identity.Principal{CredentialID: "cred-" + creds.Username, Username: creds.Username}, nil
}

var testTime = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	m, err := NewManager(slog.New(slog.DiscardHandler), DefaultConfig(), store, allowVerifier{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, store
}

func mustCreate(t *testing.T, m *Manager, now time.Time) Session {
	t.Helper()
	s, _, err := m.Create(context.Background(), now, identity.Credentials{Username: "editor", Password: "pw"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestCreateAllocatesFreshSession(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s := mustCreate(t, m, testTime)

	if s.Identifier == "" || s.CSRFToken == "" {
		t.Fatal("identifier and csrf token must be non-empty")
	}
	if s.Identifier == s.CSRFToken {
		t.Error("identifier and csrf token must differ")
	}
	if s.Name != m.Config().CookieName {
		t.Errorf("Name = %q, want cookie name", s.Name)
	}
	if s.OwnerCredentialID != "cred-editor" {
		t.Errorf("OwnerCredentialID = %q", s.OwnerCredentialID)
	}
	if !s.CreatedAt.Equal(testTime) || !s.LastRefreshedAt.Equal(testTime) {
		t.Error("timestamps must be the creation instant")
	}
	if want := testTime.Add(m.Config().TTL); !s.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, want)
	}
	if want := m.Config().HrefBase + "/" + s.Identifier; s.Href != want {
		t.Errorf("Href = %q, want %q", s.Href, want)
	}

	// The store keys by digest, never by the raw identifier.
	if _, err := store.Get(ctx, s.Identifier, testTime); !errors.Is(err, ErrNotFound) {
		t.Error("raw identifier must not be a store key")
	}
	if _, err := store.Get(ctx, token.DigestIdentifierHex(s.Identifier), testTime); err != nil {
		t.Errorf("digest lookup failed: %v", err)
	}
}

func TestCreateBadCredentialsAllocatesNothing(t *testing.T) {
	m, store := newTestManager(t)

	_, _, err := m.Create(context.Background(), testTime,
		identity.Credentials{Username: "editor", Password: "wrong"}, "")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d records after failed login, want 0", store.Len())
	}
}

func TestCreateReplacesLivePriorSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first := mustCreate(t, m, testTime)

	second, replaced, err := m.Create(ctx, testTime,
		identity.Credentials{Username: "editor", Password: "pw"}, first.Identifier)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !replaced {
		t.Error("replaced = false, want true for a live prior session")
	}
	if second.Identifier == first.Identifier {
		t.Error("new login must issue a new identifier")
	}

	if _, err := m.Find(ctx, testTime, first.Identifier); !errors.Is(err, ErrNotFound) {
		t.Errorf("prior session still resolvable: %v", err)
	}
	if _, err := m.Find(ctx, testTime, second.Identifier); err != nil {
		t.Errorf("new session not resolvable: %v", err)
	}
}

func TestCreateWithStalePriorIsNotReplacement(t *testing.T) {
	m, _ := newTestManager(t)

	_, replaced, err := m.Create(context.Background(), testTime,
		identity.Credentials{Username: "editor", Password: "pw"}, "stale-cookie-value")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if replaced {
		t.Error("replaced = true for a cookie naming no live session")
	}
}

func TestCSRFGateOrdering(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	s := mustCreate(t, m, testTime)

	// Missing token fails closed before any lookup, even for unknown ids.
	if _, err := m.Refresh(ctx, testTime, "unknown", ""); !errors.Is(err, ErrCSRFMismatch) {
		t.Errorf("missing token on unknown id: err = %v, want ErrCSRFMismatch", err)
	}
	if err := m.Delete(ctx, testTime, "unknown", ""); !errors.Is(err, ErrCSRFMismatch) {
		t.Errorf("missing token on unknown id: err = %v, want ErrCSRFMismatch", err)
	}

	// Wrong token on a live session is a mismatch.
	if _, err := m.Refresh(ctx, testTime, s.Identifier, "wrong"); !errors.Is(err, ErrCSRFMismatch) {
		t.Errorf("wrong token: err = %v, want ErrCSRFMismatch", err)
	}

	// A presented token against an unknown identifier reveals not-found:
	// the identifier itself is the unguessable proof.
	if _, err := m.Refresh(ctx, testTime, "unknown", s.CSRFToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("token on unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestRefreshSlidesExpiryOnly(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	s := mustCreate(t, m, testTime)

	later := testTime.Add(10 * time.Minute)
	refreshed, err := m.Refresh(ctx, later, s.Identifier, s.CSRFToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if !refreshed.LastRefreshedAt.Equal(later) {
		t.Errorf("LastRefreshedAt = %v, want %v", refreshed.LastRefreshedAt, later)
	}
	if want := later.Add(m.Config().TTL); !refreshed.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", refreshed.ExpiresAt, want)
	}
	if !refreshed.CreatedAt.Equal(s.CreatedAt) {
		t.Error("CreatedAt must not move on refresh")
	}
	if refreshed.CSRFToken != s.CSRFToken {
		t.Error("CSRF token must never rotate")
	}

	// Refresh succeeds repeatedly.
	for i := 0; i < 3; i++ {
		later = later.Add(time.Minute)
		if _, err := m.Refresh(ctx, later, s.Identifier, s.CSRFToken); err != nil {
			t.Fatalf("Refresh %d: %v", i, err)
		}
	}
}

func TestDeleteIsTerminal(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	s := mustCreate(t, m, testTime)

	if err := m.Delete(ctx, testTime, s.Identifier, s.CSRFToken); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := m.Find(ctx, testTime, s.Identifier); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find after delete: %v, want ErrNotFound", err)
	}
	if _, err := m.Refresh(ctx, testTime, s.Identifier, s.CSRFToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("Refresh after delete: %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, testTime, s.Identifier, s.CSRFToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: %v, want ErrNotFound", err)
	}
}

func TestExpiryBehavesLikeDeletion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	s := mustCreate(t, m, testTime)

	afterExpiry := testTime.Add(m.Config().TTL + time.Second)

	if _, err := m.Find(ctx, afterExpiry, s.Identifier); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find on expired: %v, want ErrNotFound", err)
	}
	if _, err := m.Refresh(ctx, afterExpiry, s.Identifier, s.CSRFToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("Refresh on expired: %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, afterExpiry, s.Identifier, s.CSRFToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete on expired: %v, want ErrNotFound", err)
	}
}

func TestSweepReapsExpired(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	mustCreate(t, m, testTime)
	mustCreate(t, m, testTime)
	live := mustCreate(t, m, testTime.Add(30*time.Minute))

	n, err := m.Sweep(ctx, testTime.Add(m.Config().TTL+time.Second))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("swept %d, want 2", n)
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d, want 1", store.Len())
	}
	if _, err := m.Find(ctx, testTime.Add(m.Config().TTL+time.Second), live.Identifier); err != nil {
		t.Errorf("live session swept: %v", err)
	}
}

func TestConcurrentDeletesExactlyOneSucceeds(t *testing.T) {
	m, _ := newTestManager(t)
	s := mustCreate(t, m, testTime)

	const n = 16
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Delete(context.Background(), testTime, s.Identifier, s.CSRFToken)
		}()
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrNotFound):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("winners = %d, want exactly 1", won)
	}
}

func TestTokensUniqueAcrossSessions(t *testing.T) {
	m, _ := newTestManager(t)

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		s := mustCreate(t, m, testTime)
		if seen[s.Identifier] || seen[s.CSRFToken] {
			t.Fatalf("token collision at session %d", i)
		}
		seen[s.Identifier] = true
		seen[s.CSRFToken] = true
	}
}
