// Package password hashes and verifies account passwords with Argon2id and
// enforces the sign-up password policy.
//
// Hashes use a PHC-style string ($argon2id$v=19$m=..,t=..,p=..$salt$key).
// Stored hashes are treated as untrusted input: Verify refuses parameters far
// beyond the configured cost so a tampered row cannot exhaust the server.
package password
