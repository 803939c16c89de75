// Package auth is the authentication service: sign-up, sign-in, sign-out,
// refresh rotation and bearer-token resolution over the credential store and
// the session token ledger.
//
// Every multi-step mutation runs in one storage transaction. Failures are
// *apperr.Error values; the HTTP layer maps them to responses.
package auth
