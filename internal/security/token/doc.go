// Package token provides digest primitives for session identifiers.
//
// Session identifiers are bearer secrets: they are handed to the client as
// cookie values and must never be persisted or logged in plaintext. This
// package is the single source of truth for how they are digested before
// they reach a store, an audit record, or an event payload.
//
// Modes:
//   - Default: SHA-256(identifier), suitable for development.
//   - Keyed: HMAC-SHA256(identifier, key) when GATEHOUSE_TOKEN_HMAC_KEY is
//     set, so a leaked database alone cannot be used to correlate digests
//     with captured identifiers offline.
//
// Output is stable 64-char lowercase hex in both modes.
package token
