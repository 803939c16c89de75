// Package token hashes bearer credentials for server-side storage.
//
// Session token pairs are looked up by the hash of the presented token, so
// the ledger never holds a usable token. With a key configured the digest is
// HMAC-SHA256; without one it falls back to plain SHA-256 for development.
// Output is always 64 lowercase hex characters.
package token
