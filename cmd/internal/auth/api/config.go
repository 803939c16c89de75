package authapi

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/httpx"
)

// ErrConfig is returned for invalid auth API configuration.
var ErrConfig = errors.New("invalid auth api config")

// Config controls request limits and proxy trust for the auth endpoints.
type Config struct {
	TrustProxy   bool  `env:"ONECAR_AUTH_TRUST_PROXY"`
	MaxBodyBytes int64 `env:"ONECAR_AUTH_MAX_BODY_BYTES"`
}

// DefaultConfig trusts no proxy and caps bodies at 1 MiB.
func DefaultConfig() Config {
	return Config{MaxBodyBytes: httpx.DefaultMaxBodyBytes}
}

// LoadConfigFromEnv overlays ONECAR_AUTH_* on DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if cfg.MaxBodyBytes <= 0 || cfg.MaxBodyBytes > 16<<20 {
		return Config{}, fmt.Errorf("%w: ONECAR_AUTH_MAX_BODY_BYTES must be in (0, 16MiB]", ErrConfig)
	}
	return cfg, nil
}
