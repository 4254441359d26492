package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (gatehouse.sessions).
//
// Per-record serialization comes from single-statement UPDATE/DELETE with
// rowcount checks: the row lock orders concurrent mutations and the loser
// of a delete race sees zero affected rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
// The pool is owned by the caller; Close is a no-op.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("session: nil db pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gatehouse.sessions (
			identifier_digest, csrf_token, owner_credential_id,
			created_at, last_refreshed_at, expires_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6
		)
	`, rec.IdentifierDigest, rec.CSRFToken, rec.OwnerCredentialID,
		rec.CreatedAt, rec.LastRefreshedAt, rec.ExpiresAt)
	if err != nil {
		if dup, ok := classifyUniqueViolation(err); ok {
			return dup
		}
		return err
	}
	return nil
}

// Get loads a live session row by identifier digest.
func (s *PostgresStore) Get(ctx context.Context, digest string, now time.Time) (Record, error) {
	var rec Record

	err := s.pool.QueryRow(ctx, `
		SELECT
			identifier_digest, csrf_token, owner_credential_id,
			created_at, last_refreshed_at, expires_at
		FROM gatehouse.sessions
		WHERE identifier_digest = $1 AND expires_at > $2
	`, digest, now).Scan(
		&rec.IdentifierDigest,
		&rec.CSRFToken,
		&rec.OwnerCredentialID,
		&rec.CreatedAt,
		&rec.LastRefreshedAt,
		&rec.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	return rec, nil
}

// Touch advances last_refreshed_at and expires_at on a live row.
func (s *PostgresStore) Touch(ctx context.Context, digest string, now, expiresAt time.Time) (Record, error) {
	var rec Record

	err := s.pool.QueryRow(ctx, `
		UPDATE gatehouse.sessions
		SET last_refreshed_at = $2,
		    expires_at = $3
		WHERE identifier_digest = $1 AND expires_at > $2
		RETURNING
			identifier_digest, csrf_token, owner_credential_id,
			created_at, last_refreshed_at, expires_at
	`, digest, now, expiresAt).Scan(
		&rec.IdentifierDigest,
		&rec.CSRFToken,
		&rec.OwnerCredentialID,
		&rec.CreatedAt,
		&rec.LastRefreshedAt,
		&rec.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	return rec, nil
}

// Delete removes a live row permanently. Zero affected rows means the
// session was already gone (deleted, expired, or never existed).
func (s *PostgresStore) Delete(ctx context.Context, digest string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM gatehouse.sessions
		WHERE identifier_digest = $1 AND expires_at > $2
	`, digest, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Sweep deletes expired rows.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM gatehouse.sessions
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Ping checks database reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op: the pool lifecycle is owned by the app.
func (s *PostgresStore) Close() error { return nil }

// classifyUniqueViolation maps Postgres unique violations (23505) onto the
// store's duplicate sentinels by constraint name, falling back to substring
// heuristics for renamed constraints.
func classifyUniqueViolation(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil, false
	}
	if pgErr.Code != "23505" { // unique_violation
		return nil, false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "sessions_pkey":
		return ErrDuplicateIdentifier, true
	case "uq_sessions_csrf_token":
		return ErrDuplicateCSRFToken, true
	default:
		if strings.Contains(c, "csrf") {
			return ErrDuplicateCSRFToken, true
		}
		return ErrDuplicateIdentifier, true
	}
}
