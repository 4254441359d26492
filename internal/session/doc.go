// Package session implements the session lifecycle behind the platform's
// login endpoints.
//
// A session is an opaque server-side record addressed by a client-held
// identifier (the cookie value) and guarded by a CSRF token bound at
// creation. The lifecycle is create (login), find, refresh (keepalive), and
// delete (logout); delete is terminal and one-way, and time-based expiry is
// the same terminal transition taken automatically.
//
// Identifiers are bearer secrets: stores key records by an identifier digest
// (HMAC-SHA256 when GATEHOUSE_TOKEN_HMAC_KEY is set; otherwise SHA-256), so
// the raw value exists only in the client's cookie and in responses.
//
// Transport (HTTP) integration is intentionally out of scope here.
package session
