// Package password provides Argon2id hashing and verification for static
// credential files.
//
// Hashes use a PHC-like encoded string format so credential files remain
// portable and auditable. Verification treats hash strings as untrusted
// input: malformed encodings are rejected, and hashes carrying cost
// parameters far above our own ceiling are refused outright so a hostile
// credentials file cannot turn login attempts into a resource-exhaustion
// vector.
package password
