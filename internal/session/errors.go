package session

import "errors"

var (
	// ErrNotFound is returned when an identifier matches no live session.
	// Deleted and expired sessions are indistinguishable from ones that
	// never existed.
	ErrNotFound = errors.New("session not found")

	// ErrCSRFMismatch is returned when a mutating call presents a missing or
	// wrong CSRF token. It is reported before existence is revealed.
	ErrCSRFMismatch = errors.New("csrf token mismatch")

	// ErrDuplicateIdentifier is returned by stores when an identifier digest
	// collides with a live session.
	ErrDuplicateIdentifier = errors.New("duplicate session identifier")

	// ErrDuplicateCSRFToken is returned by stores when a CSRF token collides
	// with a live session.
	ErrDuplicateCSRFToken = errors.New("duplicate csrf token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
