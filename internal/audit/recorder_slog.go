package audit

import (
	"context"
	"log/slog"
	"time"
)

// SlogRecorder writes events to the structured log. It is the audit sink
// for deployments without a database.
type SlogRecorder struct {
	log *slog.Logger
}

// NewSlogRecorder creates a log-backed audit recorder.
func NewSlogRecorder(log *slog.Logger) *SlogRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &SlogRecorder{log: log}
}

// Record implements Recorder.
func (r *SlogRecorder) Record(ctx context.Context, ev Event) {
	if ev.Action == "" {
		return
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	attrs := []slog.Attr{slog.Time("at", ev.CreatedAt)}
	if ev.IdentifierDigest != "" {
		attrs = append(attrs, slog.String("identifier_digest", ev.IdentifierDigest))
	}
	if ev.OwnerCredentialID != "" {
		attrs = append(attrs, slog.String("owner", ev.OwnerCredentialID))
	}
	if ev.IP != "" {
		attrs = append(attrs, slog.String("ip", ev.IP))
	}
	if ev.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", ev.UserAgent))
	}
	for k, v := range ev.Meta {
		attrs = append(attrs, slog.Any("meta_"+k, v))
	}

	r.log.LogAttrs(ctx, slog.LevelInfo, ev.Action, attrs...)
}
