package app

import (
	"errors"
	"fmt"

	"github.com/Hana-Open-Banking/one-car/cmd/security/token"
)

// newTokenHasher builds the hasher used for token digests at rest.
// With RequireTokenHMAC set, a missing or short key fails startup.
func newTokenHasher(cfg ServerConfig) (token.Hasher, error) {
	if !cfg.RequireTokenHMAC {
		return token.NewHasher(cfg.TokenHMACKey), nil
	}

	h, err := token.NewStrictHasher(cfg.TokenHMACKey, token.MinHMACKeyBytes)
	switch {
	case errors.Is(err, token.ErrHMACKeyMissing):
		return token.Hasher{}, fmt.Errorf("%w: ONECAR_REQUIRE_TOKEN_HMAC=true but ONECAR_TOKEN_HMAC_KEY is missing", ErrConfig)
	case errors.Is(err, token.ErrHMACKeyTooShort):
		return token.Hasher{}, fmt.Errorf("%w: ONECAR_TOKEN_HMAC_KEY must be at least %d bytes", ErrConfig, token.MinHMACKeyBytes)
	case err != nil:
		return token.Hasher{}, err
	}
	if !h.HMACEnabled() {
		return token.Hasher{}, fmt.Errorf("%w: token hasher is not in HMAC mode", ErrConfig)
	}
	return h, nil
}
