package api

import (
	"net/http"
	"strings"
	"time"

	"gatehouse/internal/session"
)

// setSessionCookie issues the identifier to the client. The cookie expires
// with the session so browsers drop it around the time the server would
// report it gone anyway.
func (h *Handler) setSessionCookie(w http.ResponseWriter, s session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    s.Identifier,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

// clearSessionCookie instructs the client to discard its session cookie.
// The value "deleted" plus an epoch expiry is the platform's clearing
// convention; MaxAge<0 covers clients that ignore Expires.
func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "deleted",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

// identifierFromCookie extracts the session identifier carried by the
// request cookie, if any. The clearing value is treated as absent.
func (h *Handler) identifierFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cfg.CookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" || v == "deleted" {
		return "", false
	}
	return v, true
}

// presentedIdentifier resolves the caller's session identifier: the cookie
// wins; the session header is the fallback for non-browser clients.
func (h *Handler) presentedIdentifier(r *http.Request) (string, bool) {
	if v, ok := h.identifierFromCookie(r); ok {
		return v, true
	}
	if h.cfg.SessionHeaderName != "" {
		if v := strings.TrimSpace(r.Header.Get(h.cfg.SessionHeaderName)); v != "" {
			return v, true
		}
	}
	return "", false
}
