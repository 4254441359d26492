package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gatehouse/internal/identity/ids"
)

// PostgresRecorder appends events to gatehouse.audit_log.
//
// Inserts are best effort: failures are logged and dropped so a degraded
// audit sink cannot take the login path down with it.
type PostgresRecorder struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates a Postgres-backed audit recorder.
// The pool lifecycle is owned by the caller.
func NewPostgresRecorder(log *slog.Logger, pool *pgxpool.Pool) (*PostgresRecorder, error) {
	if pool == nil {
		return nil, errors.New("audit: nil db pool")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRecorder{log: log, pool: pool}, nil
}

// Record implements Recorder.
func (r *PostgresRecorder) Record(ctx context.Context, ev Event) {
	action := strings.TrimSpace(ev.Action)
	if action == "" {
		return
	}

	if ev.ID == "" {
		id, err := ids.NewULID(ev.CreatedAt)
		if err != nil {
			r.log.Error("audit.id.fail", "err", err, "action", action)
			return
		}
		ev.ID = id
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO gatehouse.audit_log (
			id, action, identifier_digest, owner_credential_id,
			created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
	`, ev.ID, action, trimOrNil(ev.IdentifierDigest), trimOrNil(ev.OwnerCredentialID),
		ev.CreatedAt, trimOrNil(ev.IP), trimOrNil(ev.UserAgent), metaVal)
	if err != nil {
		r.log.Error("audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
