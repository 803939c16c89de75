package session

import "errors"

// Codec verification failures.
var (
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrMalformed        = errors.New("token malformed")
	ErrExpired          = errors.New("token expired")
	ErrUnsupportedType  = errors.New("token type unsupported")
)

var (
	// ErrPairNotFound is returned when no live pair matches a token.
	ErrPairNotFound = errors.New("session token pair not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
