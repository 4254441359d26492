// Package api is the HTTP endpoint layer over the session manager.
//
// It translates wire requests into manager calls and manager results into
// statuses, bodies, and Set-Cookie directives. The mapping is deliberately
// boring: all session semantics live in internal/session; this package only
// owns transport concerns (cookies, headers, JSON shapes, throttling).
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/audit"
	"gatehouse/internal/events"
	"gatehouse/internal/identity"
	"gatehouse/internal/metrics"
	"gatehouse/internal/security/token"
	"gatehouse/internal/session"
)

// Handler serves the session lifecycle endpoints.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	manager  *session.Manager
	audit    audit.Recorder
	events   events.Publisher
	throttle *loginThrottle

	// now is stubbed in tests.
	now func() time.Time
}

// HandlerOption configures optional handler collaborators.
type HandlerOption func(*Handler)

// WithAuditRecorder sets the audit sink (default: none).
func WithAuditRecorder(rec audit.Recorder) HandlerOption {
	return func(h *Handler) {
		if rec != nil {
			h.audit = rec
		}
	}
}

// WithEventPublisher sets the lifecycle event publisher (default: none).
func WithEventPublisher(pub events.Publisher) HandlerOption {
	return func(h *Handler) {
		if pub != nil {
			h.events = pub
		}
	}
}

// WithClock overrides the handler's clock. Tests only.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs the endpoint layer over a session manager.
func NewHandler(log *slog.Logger, cfg Config, manager *session.Manager, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if manager == nil {
		return nil, errors.New("api: nil session manager")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		manager:  manager,
		audit:    audit.Noop{},
		events:   events.Noop{},
		throttle: newLoginThrottle(cfg.LoginIPMax, cfg.LoginIPWindow),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes returns the session endpoints as a chi router, ready to be mounted
// under the service's public base path.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.handleCreate)
	r.Get("/sessions/current", h.handleCurrent)
	r.Post("/sessions/{identifier}/refresh", h.handleRefresh)
	r.Delete("/sessions/{identifier}", h.handleDelete)
	return r
}

// handleCreate is POST /sessions: login.
//
// 201 on a fresh login, 200 when the presented cookie named a live session
// that the new login replaced. Both issue a brand-new identifier and CSRF
// token; the server never extends an existing session on login.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	if blocked, retryAfter := h.throttle.Blocked(ip, now); blocked {
		metrics.SessionFailuresTotal.WithLabelValues("create", "rate_limited").Inc()
		h.auditCreateFailed(ctx, now, ip, ua, "", "rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}

	var req createSessionRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	prior, _ := h.identifierFromCookie(r)

	creds := identity.Credentials{Username: username, Password: req.Password}
	s, replaced, err := h.manager.Create(ctx, now, creds, prior)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.throttle.NoteFailure(ip, now)
			metrics.SessionFailuresTotal.WithLabelValues("create", "invalid_credentials").Inc()
			h.auditCreateFailed(ctx, now, ip, ua, username, "invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("session.create.fail", "err", err)
		metrics.SessionFailuresTotal.WithLabelValues("create", "error").Inc()
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	digest := token.DigestIdentifierHex(s.Identifier)
	h.audit.Record(ctx, audit.Event{
		Action:            audit.ActionCreateSuccess,
		IdentifierDigest:  digest,
		OwnerCredentialID: s.OwnerCredentialID,
		CreatedAt:         now,
		IP:                ip,
		UserAgent:         ua,
		Meta:              map[string]any{"replaced": replaced},
	})
	h.events.SessionCreated(ctx, events.SessionEvent{
		IdentifierDigest:  digest,
		OwnerCredentialID: s.OwnerCredentialID,
		At:                now,
		Replaced:          replaced,
	})
	metrics.SessionsCreatedTotal.WithLabelValues(boolLabel(replaced)).Inc()

	h.setSessionCookie(w, s)
	status := http.StatusCreated
	if replaced {
		status = http.StatusOK
	}
	writeJSON(w, status, toSessionResponse(s))
}

// handleCurrent is GET /sessions/current: resolve the caller's own session.
//
// The 404 body is intentionally empty — this endpoint is polled by clients
// to detect logout, and an error envelope would be noise.
func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.presentedIdentifier(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s, err := h.manager.Find(r.Context(), h.now(), identifier)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("session.find.fail", "err", err)
		metrics.SessionFailuresTotal.WithLabelValues("find", "error").Inc()
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, currentSessionResponse{Session: toSessionResponse(s)})
}

// handleRefresh is POST /sessions/{identifier}/refresh: keepalive.
//
// A missing or wrong CSRF token is 401 even for identifiers that do not
// exist; existence is only revealed (as 404) to callers presenting a token.
// The 404 also clears the cookie: the identifier the client holds is dead.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()
	identifier := chi.URLParam(r, "identifier")
	csrf := strings.TrimSpace(r.Header.Get(h.cfg.CSRFHeaderName))

	s, err := h.manager.Refresh(ctx, now, identifier, csrf)
	if err != nil {
		h.auditMutationFailed(ctx, audit.ActionRefreshFailed, now, r, identifier, err)
		switch {
		case errors.Is(err, session.ErrCSRFMismatch):
			metrics.SessionFailuresTotal.WithLabelValues("refresh", "csrf_mismatch").Inc()
			writeError(w, http.StatusUnauthorized, "csrf_mismatch", "missing or invalid csrf token")
		case errors.Is(err, session.ErrNotFound):
			metrics.SessionFailuresTotal.WithLabelValues("refresh", "not_found").Inc()
			h.clearSessionCookie(w)
			writeError(w, http.StatusNotFound, "session_not_found", "session not found")
		default:
			h.log.Error("session.refresh.fail", "err", err)
			metrics.SessionFailuresTotal.WithLabelValues("refresh", "error").Inc()
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.audit.Record(ctx, audit.Event{
		Action:            audit.ActionRefreshSuccess,
		IdentifierDigest:  token.DigestIdentifierHex(identifier),
		OwnerCredentialID: s.OwnerCredentialID,
		CreatedAt:         now,
		IP:                clientIP(r, h.cfg.TrustProxy),
		UserAgent:         strings.TrimSpace(r.UserAgent()),
	})
	metrics.SessionsRefreshedTotal.Inc()

	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// handleDelete is DELETE /sessions/{identifier}: logout.
//
// The clearing Set-Cookie is attached to both 204 and 404 so the client's
// browser state converges even when a concurrent delete already won; only
// CSRF failures leave the cookie alone.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()
	identifier := chi.URLParam(r, "identifier")
	csrf := strings.TrimSpace(r.Header.Get(h.cfg.CSRFHeaderName))

	err := h.manager.Delete(ctx, now, identifier, csrf)
	if err != nil {
		h.auditMutationFailed(ctx, audit.ActionDeleteFailed, now, r, identifier, err)
		switch {
		case errors.Is(err, session.ErrCSRFMismatch):
			metrics.SessionFailuresTotal.WithLabelValues("delete", "csrf_mismatch").Inc()
			writeError(w, http.StatusUnauthorized, "csrf_mismatch", "missing or invalid csrf token")
		case errors.Is(err, session.ErrNotFound):
			metrics.SessionFailuresTotal.WithLabelValues("delete", "not_found").Inc()
			h.clearSessionCookie(w)
			writeError(w, http.StatusNotFound, "session_not_found", "session not found")
		default:
			h.log.Error("session.delete.fail", "err", err)
			metrics.SessionFailuresTotal.WithLabelValues("delete", "error").Inc()
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	digest := token.DigestIdentifierHex(identifier)
	h.audit.Record(ctx, audit.Event{
		Action:           audit.ActionDeleteSuccess,
		IdentifierDigest: digest,
		CreatedAt:        now,
		IP:               clientIP(r, h.cfg.TrustProxy),
		UserAgent:        strings.TrimSpace(r.UserAgent()),
	})
	h.events.SessionDeleted(ctx, events.SessionEvent{IdentifierDigest: digest, At: now})
	metrics.SessionsDeletedTotal.Inc()

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) auditCreateFailed(ctx context.Context, now time.Time, ip, ua, username, reason string) {
	meta := map[string]any{"reason": reason}
	if username != "" {
		meta["username"] = identity.NormalizeUsername(username)
	}
	h.audit.Record(ctx, audit.Event{
		Action:    audit.ActionCreateFailed,
		CreatedAt: now,
		IP:        ip,
		UserAgent: ua,
		Meta:      meta,
	})
}

func (h *Handler) auditMutationFailed(ctx context.Context, action string, now time.Time, r *http.Request, identifier string, err error) {
	reason := "error"
	switch {
	case errors.Is(err, session.ErrCSRFMismatch):
		reason = "csrf_mismatch"
	case errors.Is(err, session.ErrNotFound):
		reason = "not_found"
	}

	ev := audit.Event{
		Action:    action,
		CreatedAt: now,
		IP:        clientIP(r, h.cfg.TrustProxy),
		UserAgent: strings.TrimSpace(r.UserAgent()),
		Meta:      map[string]any{"reason": reason},
	}
	// Digest only when the caller passed the CSRF gate; otherwise the
	// identifier is unverified input and stays out of the trail.
	if identifier != "" && reason == "not_found" {
		ev.IdentifierDigest = token.DigestIdentifierHex(identifier)
	}
	h.audit.Record(ctx, ev)
}

// clientIP resolves the caller address, honoring X-Forwarded-For only when
// the deployment vouches for its proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
			first := strings.TrimSpace(strings.Split(fwd, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
