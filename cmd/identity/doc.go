// Package identity is the credential store: accounts, their password hashes,
// roles and activation state.
//
// Stores are persistence-only. Password hashing and field validation live in
// this package as plain functions so the authentication service can run them
// outside a database transaction.
package identity
