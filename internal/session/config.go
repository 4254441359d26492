package session

import (
	"strings"
	"time"
)

// Config defines runtime configuration for the session subsystem.
//
// It controls the cookie name reported to clients, the sliding lifetime,
// the entropy of generated secrets, and how resource paths are derived.
// Values arrive through the central application config; this struct is
// deliberately explicit so security parameters are tunable per deployment.
type Config struct {
	// CookieName is the session cookie name, fixed per deployment. It is
	// also reported to clients as the session's name field.
	CookieName string

	// TTL is the sliding session lifetime. Each refresh moves the expiry to
	// last_refreshed_at + TTL.
	TTL time.Duration

	// TokenBytes is the number of random bytes behind generated identifiers
	// and CSRF tokens.
	TokenBytes int

	// HrefBase is the path prefix resource locators are derived from,
	// e.g. "/sessions" yields "/sessions/<identifier>".
	HrefBase string
}

// DefaultConfig returns secure defaults suitable for development.
func DefaultConfig() Config {
	return Config{
		CookieName: "gatehouse_session",
		TTL:        time.Hour,
		TokenBytes: 32,
		HrefBase:   "/sessions",
	}
}

// Validate returns ErrConfig when the configuration is unusable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.CookieName) == "" {
		return ErrConfig
	}
	// Cookie names must be valid HTTP tokens; reject separators outright.
	if strings.ContainsAny(c.CookieName, " \t;,=\"\\()<>@:/[]?{}") {
		return ErrConfig
	}
	if c.TTL <= 0 {
		return ErrConfig
	}
	if c.TokenBytes < 32 || c.TokenBytes > 64 {
		return ErrConfig
	}
	if !strings.HasPrefix(c.HrefBase, "/") || strings.HasSuffix(c.HrefBase, "/") {
		return ErrConfig
	}
	return nil
}
