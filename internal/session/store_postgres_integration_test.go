package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests run when GATEHOUSE_TEST_DATABASE_URL is set and the
// gatehouse schema has been migrated. They are skipped otherwise so local
// runs stay fast.

func newIntegrationStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()

	dbURL := os.Getenv("GATEHOUSE_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("GATEHOUSE_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	t.Cleanup(pool.Close)

	store, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return store, pool
}

func cleanupRecord(t *testing.T, pool *pgxpool.Pool, digest string) {
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(),
			`DELETE FROM gatehouse.sessions WHERE identifier_digest = $1`, digest)
	})
}

func TestPostgresStoreLifecycle(t *testing.T) {
	t.Parallel()

	store, pool := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	digest := fmt.Sprintf("it-digest-%d", now.UnixNano())
	csrf := fmt.Sprintf("it-csrf-%d", now.UnixNano())
	cleanupRecord(t, pool, digest)

	rec := Record{
		IdentifierDigest:  digest,
		CSRFToken:         csrf,
		OwnerCredentialID: "it-cred",
		CreatedAt:         now,
		LastRefreshedAt:   now,
		ExpiresAt:         now.Add(time.Hour),
	}
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Create(ctx, rec); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Errorf("duplicate insert: %v, want ErrDuplicateIdentifier", err)
	}

	got, err := store.Get(ctx, digest, now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CSRFToken != csrf {
		t.Errorf("CSRFToken = %q, want %q", got.CSRFToken, csrf)
	}

	later := now.Add(10 * time.Minute)
	touched, err := store.Touch(ctx, digest, later, later.Add(time.Hour))
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if !touched.LastRefreshedAt.Equal(later) {
		t.Errorf("LastRefreshedAt = %v, want %v", touched.LastRefreshedAt, later)
	}

	if err := store.Delete(ctx, digest, later); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, digest, later); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: %v, want ErrNotFound", err)
	}
}

func TestPostgresStoreCSRFUniqueness(t *testing.T) {
	t.Parallel()

	store, pool := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	csrf := fmt.Sprintf("it-shared-csrf-%d", now.UnixNano())
	d1 := fmt.Sprintf("it-d1-%d", now.UnixNano())
	d2 := fmt.Sprintf("it-d2-%d", now.UnixNano())
	cleanupRecord(t, pool, d1)
	cleanupRecord(t, pool, d2)

	first := Record{
		IdentifierDigest: d1, CSRFToken: csrf, OwnerCredentialID: "it-cred",
		CreatedAt: now, LastRefreshedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	second := first
	second.IdentifierDigest = d2
	if err := store.Create(ctx, second); !errors.Is(err, ErrDuplicateCSRFToken) {
		t.Errorf("shared csrf insert: %v, want ErrDuplicateCSRFToken", err)
	}
}

func TestPostgresStoreSweep(t *testing.T) {
	t.Parallel()

	store, pool := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	digest := fmt.Sprintf("it-expired-%d", now.UnixNano())
	cleanupRecord(t, pool, digest)

	rec := Record{
		IdentifierDigest:  digest,
		CSRFToken:         fmt.Sprintf("it-expired-csrf-%d", now.UnixNano()),
		OwnerCredentialID: "it-cred",
		CreatedAt:         now.Add(-2 * time.Hour),
		LastRefreshedAt:   now.Add(-2 * time.Hour),
		ExpiresAt:         now.Add(-time.Hour),
	}
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Expired on arrival: invisible to reads, reaped by sweep.
	if _, err := store.Get(ctx, digest, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get expired: %v, want ErrNotFound", err)
	}
	n, err := store.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n < 1 {
		t.Errorf("Sweep reaped %d, want >= 1", n)
	}
}
