package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

// newOpaqueToken returns nBytes of crypto-strong randomness encoded URL-safe
// without padding. Used for both identifiers and CSRF tokens; uniqueness is
// enforced at the store, not assumed from entropy.
func newOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// secureStringEqual compares two tokens in constant time.
// Length is not secret here: tokens are fixed-size by construction.
func secureStringEqual(a, b string) bool {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
