package api

import (
	"net/http"
	"time"
)

// Config controls the HTTP surface: cookie attributes, header names, and
// request limits. Values arrive from the central application config.
type Config struct {
	// CookieName is the session cookie name. It must match the name the
	// session manager reports to clients.
	CookieName string

	// Cookie attributes applied to both issuing and clearing directives.
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// CSRFHeaderName is the request header carrying the CSRF token on
	// mutating calls.
	CSRFHeaderName string

	// SessionHeaderName optionally carries the session identifier for
	// non-browser clients that do not send cookies.
	SessionHeaderName string

	// MaxBodyBytes caps request bodies before JSON decoding.
	MaxBodyBytes int64

	// TrustProxy enables X-Forwarded-For for client IP resolution. Only
	// set behind a proxy that strips the header from client traffic.
	TrustProxy bool

	// LoginIPMax blocks logins from an IP after this many failures within
	// LoginIPWindow. Zero disables throttling.
	LoginIPMax    int
	LoginIPWindow time.Duration
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		CookieName:        "gatehouse_session",
		CookiePath:        "/",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
		CSRFHeaderName:    "X-CSRF-Token",
		SessionHeaderName: "X-Session-Token",
		MaxBodyBytes:      1 << 16,
		LoginIPMax:        10,
		LoginIPWindow:     5 * time.Minute,
	}
}
