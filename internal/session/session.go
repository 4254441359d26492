package session

import "time"

// Session is the client-facing view of a live session.
//
// Identifier and CSRFToken are bearer secrets. They appear here because the
// client needs both; they must never be logged or persisted raw.
type Session struct {
	// Identifier is the opaque cookie value addressing this session.
	Identifier string

	// Name is the cookie name the identifier travels under.
	Name string

	// CSRFToken is bound at creation and never rotates for the life of the
	// session. Mutating calls must present it.
	CSRFToken string

	// OwnerCredentialID is the credential that created the session.
	OwnerCredentialID string

	CreatedAt       time.Time
	LastRefreshedAt time.Time
	ExpiresAt       time.Time

	// Href is the canonical resource path for this session, derived from
	// the identifier.
	Href string
}
