package identity

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gatehouse/internal/identity/ids"
	"gatehouse/internal/security/password"
)

// Credential is one entry of a static credentials file.
type Credential struct {
	// ID is optional; a ULID is assigned at load when omitted.
	ID           string `yaml:"id"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

type credentialsFile struct {
	Credentials []Credential `yaml:"credentials"`
}

// StaticVerifier verifies logins against a fixed, read-only credential set.
//
// It is the minimal collaborator needed to run the session service without
// the platform's identity backends. There is no registration, no roles, and
// no mutation: the set is loaded once and never changes.
type StaticVerifier struct {
	byUsername map[string]Credential

	// dummyHash burns a comparable amount of work for unknown usernames so
	// response timing does not reveal which usernames exist.
	dummyHash string
}

// NewStaticVerifier builds a verifier from in-memory entries.
func NewStaticVerifier(entries []Credential) (*StaticVerifier, error) {
	byUsername := make(map[string]Credential, len(entries))
	now := time.Now().UTC()

	for i, e := range entries {
		username := NormalizeUsername(e.Username)
		if username == "" {
			return nil, fmt.Errorf("%w: entry %d: username required", ErrConfig, i)
		}
		if _, dup := byUsername[username]; dup {
			return nil, fmt.Errorf("%w: duplicate username %q", ErrConfig, username)
		}
		if !strings.HasPrefix(e.PasswordHash, "$argon2id$") {
			return nil, fmt.Errorf("%w: entry %q: password_hash must be an argon2id PHC string", ErrConfig, username)
		}
		if e.ID == "" {
			id, err := ids.NewULID(now)
			if err != nil {
				return nil, err
			}
			e.ID = id
		}
		e.Username = username
		byUsername[username] = e
	}

	dummy, err := password.Hash("gatehouse-timing-equalizer", password.DefaultParams())
	if err != nil {
		return nil, err
	}

	return &StaticVerifier{byUsername: byUsername, dummyHash: dummy}, nil
}

// LoadStaticVerifier reads a YAML credentials file:
//
//	credentials:
//	  - username: editor
//	    id: 01K2ZP4Q6R8S9T0VWXYZAB1CDE   # optional
//	    password_hash: $argon2id$v=19$...
func LoadStaticVerifier(path string) (*StaticVerifier, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config.
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var f credentialsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}

	return NewStaticVerifier(f.Credentials)
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(ctx context.Context, creds Credentials) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}

	username := NormalizeUsername(creds.Username)
	if username == "" || creds.Password == "" {
		return Principal{}, ErrInvalidCredentials
	}

	entry, ok := v.byUsername[username]
	if !ok {
		// Timing resistance: verify against the dummy hash anyway.
		_, _ = password.Verify(v.dummyHash, creds.Password)
		return Principal{}, ErrInvalidCredentials
	}

	match, err := password.Verify(entry.PasswordHash, creds.Password)
	if err != nil || !match {
		return Principal{}, ErrInvalidCredentials
	}

	return Principal{CredentialID: entry.ID, Username: entry.Username}, nil
}

// Len reports the number of loaded credentials.
func (v *StaticVerifier) Len() int { return len(v.byUsername) }

// NormalizeUsername lowercases and trims a username for lookup.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
