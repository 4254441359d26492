package session

import (
	"context"
	"time"
)

// Record is the at-rest representation of a session.
//
// Stores never see raw identifiers; records are keyed by the identifier
// digest. The CSRF token is stored raw because find and refresh must return
// it to the client.
type Record struct {
	IdentifierDigest  string
	CSRFToken         string
	OwnerCredentialID string
	CreatedAt         time.Time
	LastRefreshedAt   time.Time
	ExpiresAt         time.Time
}

// Store abstracts persistence for session records.
//
// Implementations must enforce uniqueness of identifier digests and CSRF
// tokens at write time, and must serialize mutations per record so that
// concurrent refresh/delete and delete/delete races resolve
// deterministically: exactly one delete succeeds, the loser observes
// ErrNotFound.
type Store interface {
	// Create inserts a new record. Returns ErrDuplicateIdentifier or
	// ErrDuplicateCSRFToken on a uniqueness violation.
	Create(ctx context.Context, rec Record) error

	// Get loads a live record by identifier digest. Expired or absent
	// records yield ErrNotFound.
	Get(ctx context.Context, digest string, now time.Time) (Record, error)

	// Touch advances LastRefreshedAt to now and the expiry to expiresAt,
	// returning the updated record. Expired or absent records yield
	// ErrNotFound.
	Touch(ctx context.Context, digest string, now, expiresAt time.Time) (Record, error)

	// Delete permanently removes a live record. Expired or absent records
	// yield ErrNotFound.
	Delete(ctx context.Context, digest string, now time.Time) error

	// Sweep reaps expired records and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Ping reports backend reachability for readiness checks.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}
