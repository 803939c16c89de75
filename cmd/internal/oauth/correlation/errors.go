package correlation

import "errors"

var (
	// ErrNotFound is returned by stores when no session matches a state.
	ErrNotFound = errors.New("oauth correlation session not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid oauth session config")
)
