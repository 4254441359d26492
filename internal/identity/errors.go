package identity

import "errors"

var (
	// ErrInvalidCredentials is returned for any authentication failure.
	// Callers must not learn whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrConfig is returned for an unusable credentials file.
	ErrConfig = errors.New("invalid credentials config")
)
