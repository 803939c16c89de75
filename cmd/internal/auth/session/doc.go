// Package session issues, records and revokes session token pairs.
//
// A Codec mints and verifies self-contained access and refresh tokens (JWT
// HS512 or PASETO v4.local). The Ledger records every issued pair by token
// hash so that revocation is authoritative: a token that verifies but whose
// pair is revoked or missing is rejected by the authentication service.
//
// Stores never open transactions. Callers group ledger calls through
// storage.TxManager and the store joins the transaction carried by ctx.
package session
