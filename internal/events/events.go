// Package events publishes session lifecycle events so other platform
// subsystems (cache invalidation, presence, analytics) can react to logins
// and logouts without polling.
//
// Payloads carry the identifier digest, never the raw identifier. Publishing
// is best effort: a broker outage must not fail the request that triggered
// the event.
package events

import (
	"context"
	"time"
)

// NATS subjects for session lifecycle events.
const (
	SubjectSessionCreated = "sessions.created"
	SubjectSessionDeleted = "sessions.deleted"
)

// SessionEvent is the payload published on session lifecycle subjects.
type SessionEvent struct {
	IdentifierDigest  string    `json:"identifier_digest"`
	OwnerCredentialID string    `json:"owner_credential_id,omitempty"`
	At                time.Time `json:"at"`

	// Replaced is set on created events when the login displaced a live
	// prior session.
	Replaced bool `json:"replaced,omitempty"`
}

// Publisher emits session lifecycle events.
type Publisher interface {
	SessionCreated(ctx context.Context, ev SessionEvent)
	SessionDeleted(ctx context.Context, ev SessionEvent)
	Close() error
}

// Noop discards every event; used when no broker is configured.
type Noop struct{}

// SessionCreated implements Publisher.
func (Noop) SessionCreated(context.Context, SessionEvent) {}

// SessionDeleted implements Publisher.
func (Noop) SessionDeleted(context.Context, SessionEvent) {}

// Close implements Publisher.
func (Noop) Close() error { return nil }
