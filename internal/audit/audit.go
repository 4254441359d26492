// Package audit records session lifecycle events for forensics.
//
// Events carry the identifier digest, never the raw identifier: audit rows
// must stay useless as bearer credentials. Recording is best effort — an
// audit failure never fails the request it describes.
package audit

import (
	"context"
	"time"
)

// Actions recorded by the session service.
const (
	ActionCreateSuccess  = "session.create.success"
	ActionCreateFailed   = "session.create.failed"
	ActionRefreshSuccess = "session.refresh.success"
	ActionRefreshFailed  = "session.refresh.failed"
	ActionDeleteSuccess  = "session.delete.success"
	ActionDeleteFailed   = "session.delete.failed"
)

// Event is one audit trail entry.
type Event struct {
	// ID is a ULID assigned by the recorder when left empty.
	ID string

	// Action is one of the Action* constants.
	Action string

	// IdentifierDigest is the digest of the session identifier involved,
	// empty when no session was resolved (e.g. bad credentials).
	IdentifierDigest string

	// OwnerCredentialID is the owning credential where known.
	OwnerCredentialID string

	CreatedAt time.Time
	IP        string
	UserAgent string

	// Meta carries action-specific detail, e.g. a failure reason.
	Meta map[string]any
}

// Recorder persists audit events.
//
// Implementations must be safe for concurrent use and must swallow their
// own failures (logging them at most): audit is an observer, not a gate.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Noop discards every event.
type Noop struct{}

// Record implements Recorder.
func (Noop) Record(context.Context, Event) {}
