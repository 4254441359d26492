package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatehouse/internal/identity"
	"gatehouse/internal/security/token"
)

// createAttempts bounds retries when the store reports a token collision.
// With 32+ bytes of entropy a collision means something is badly wrong, but
// uniqueness is a store-enforced invariant, not a probabilistic hope.
const createAttempts = 3

// Manager implements the session lifecycle operations.
//
// It owns secret generation and the CSRF gate; persistence and uniqueness
// live behind Store, credential checking behind identity.Verifier. Callers
// pass now explicitly so behavior stays deterministic under test.
type Manager struct {
	log      *slog.Logger
	cfg      Config
	store    Store
	verifier identity.Verifier
}

// NewManager constructs a Manager with the provided configuration, store,
// and credential verifier.
func NewManager(log *slog.Logger, cfg Config, store Store, verifier identity.Verifier) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	if verifier == nil {
		return nil, errors.New("session: nil verifier")
	}
	return &Manager{log: log, cfg: cfg, store: store, verifier: verifier}, nil
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config { return m.cfg }

// Create verifies credentials and, on success, allocates a brand-new
// session: a fresh identifier and a fresh CSRF token, regardless of any
// session the client already holds.
//
// priorIdentifier is the identifier carried by the client's existing cookie,
// if any. When it names a live session, that session is deleted — a new
// login replaces it rather than extending it — and replaced reports true so
// the transport layer can distinguish re-login from first login.
func (m *Manager) Create(ctx context.Context, now time.Time, creds identity.Credentials, priorIdentifier string) (Session, bool, error) {
	principal, err := m.verifier.Verify(ctx, creds)
	if err != nil {
		return Session{}, false, err
	}

	var (
		identifier string
		rec        Record
	)
	for attempt := 0; ; attempt++ {
		identifier, err = newOpaqueToken(m.cfg.TokenBytes)
		if err != nil {
			return Session{}, false, err
		}
		csrf, err := newOpaqueToken(m.cfg.TokenBytes)
		if err != nil {
			return Session{}, false, err
		}

		rec = Record{
			IdentifierDigest:  token.DigestIdentifierHex(identifier),
			CSRFToken:         csrf,
			OwnerCredentialID: principal.CredentialID,
			CreatedAt:         now,
			LastRefreshedAt:   now,
			ExpiresAt:         now.Add(m.cfg.TTL),
		}

		err = m.store.Create(ctx, rec)
		if err == nil {
			break
		}
		if (errors.Is(err, ErrDuplicateIdentifier) || errors.Is(err, ErrDuplicateCSRFToken)) && attempt+1 < createAttempts {
			m.log.Warn("session.create.collision", "attempt", attempt+1)
			continue
		}
		return Session{}, false, err
	}

	replaced := false
	if priorIdentifier != "" && priorIdentifier != identifier {
		switch err := m.store.Delete(ctx, token.DigestIdentifierHex(priorIdentifier), now); {
		case err == nil:
			replaced = true
		case errors.Is(err, ErrNotFound):
			// Stale cookie; nothing to replace.
		default:
			// Best effort: the new session is already live.
			m.log.Error("session.create.replace_prior.fail", "err", err)
		}
	}

	return m.sessionFromRecord(identifier, rec), replaced, nil
}

// Find resolves an identifier to its live session.
func (m *Manager) Find(ctx context.Context, now time.Time, identifier string) (Session, error) {
	if identifier == "" {
		return Session{}, ErrNotFound
	}

	rec, err := m.store.Get(ctx, token.DigestIdentifierHex(identifier), now)
	if err != nil {
		return Session{}, err
	}
	return m.sessionFromRecord(identifier, rec), nil
}

// Refresh marks a session as still in use: LastRefreshedAt moves to now and
// the expiry slides. Nothing else changes; the CSRF token never rotates.
//
// The CSRF gate runs first. A missing token fails closed as ErrCSRFMismatch
// before any lookup, so existence is never revealed to a caller who has
// proven nothing. With a token presented, an unknown identifier is
// ErrNotFound, and a live session's stored token is compared in constant
// time.
func (m *Manager) Refresh(ctx context.Context, now time.Time, identifier, csrfToken string) (Session, error) {
	rec, err := m.checkCSRF(ctx, now, identifier, csrfToken)
	if err != nil {
		return Session{}, err
	}

	updated, err := m.store.Touch(ctx, rec.IdentifierDigest, now, now.Add(m.cfg.TTL))
	if err != nil {
		// A concurrent delete between the gate and the touch wins.
		return Session{}, err
	}
	return m.sessionFromRecord(identifier, updated), nil
}

// Delete permanently removes a session. The transition is terminal and
// one-way: afterwards every operation on the identifier reports ErrNotFound.
// The same CSRF gate as Refresh applies.
func (m *Manager) Delete(ctx context.Context, now time.Time, identifier, csrfToken string) error {
	rec, err := m.checkCSRF(ctx, now, identifier, csrfToken)
	if err != nil {
		return err
	}
	return m.store.Delete(ctx, rec.IdentifierDigest, now)
}

// Sweep reaps expired sessions via the store.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (int, error) {
	return m.store.Sweep(ctx, now)
}

func (m *Manager) checkCSRF(ctx context.Context, now time.Time, identifier, csrfToken string) (Record, error) {
	if csrfToken == "" {
		return Record{}, ErrCSRFMismatch
	}
	if identifier == "" {
		return Record{}, ErrNotFound
	}

	rec, err := m.store.Get(ctx, token.DigestIdentifierHex(identifier), now)
	if err != nil {
		return Record{}, err
	}
	if !secureStringEqual(rec.CSRFToken, csrfToken) {
		return Record{}, ErrCSRFMismatch
	}
	return rec, nil
}

func (m *Manager) sessionFromRecord(identifier string, rec Record) Session {
	return Session{
		Identifier:        identifier,
		Name:              m.cfg.CookieName,
		CSRFToken:         rec.CSRFToken,
		OwnerCredentialID: rec.OwnerCredentialID,
		CreatedAt:         rec.CreatedAt,
		LastRefreshedAt:   rec.LastRefreshedAt,
		ExpiresAt:         rec.ExpiresAt,
		Href:              m.cfg.HrefBase + "/" + identifier,
	}
}
