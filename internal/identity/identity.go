// Package identity defines the credential-verification boundary the session
// service depends on.
//
// The platform's real credential backends (user directories, SSO, password
// stores) live elsewhere; this package only carries the narrow contract the
// session manager needs to turn credentials into a principal, plus a static
// file-backed implementation sufficient to run the service standalone.
package identity

import "context"

// Credentials is what a login request presents.
type Credentials struct {
	Username string
	Password string
}

// Principal identifies the credential that authenticated successfully.
type Principal struct {
	// CredentialID is the stable ID sessions record as their owner.
	CredentialID string
	Username     string
}

// Verifier checks credentials and resolves the owning principal.
//
// Implementations must return ErrInvalidCredentials for any authentication
// failure (unknown user, wrong password) without distinguishing the two.
type Verifier interface {
	Verify(ctx context.Context, creds Credentials) (Principal, error)
}
