package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Format selects the Codec implementation.
type Format string

const (
	FormatJWT    Format = "jwt"
	FormatPASETO Format = "paseto"
)

// MinSecretBytes is the minimum signing secret length.
const MinSecretBytes = 32

// Config is the immutable session configuration built once at startup.
type Config struct {
	Format     Format        `env:"ONECAR_TOKEN_FORMAT"`
	Secret     string        `env:"ONECAR_TOKEN_SECRET"`
	Issuer     string        `env:"ONECAR_TOKEN_ISSUER"`
	AccessTTL  time.Duration `env:"ONECAR_ACCESS_TTL"`
	RefreshTTL time.Duration `env:"ONECAR_REFRESH_TTL"`
	ClockSkew  time.Duration `env:"ONECAR_CLOCK_SKEW"`
}

// DefaultConfig returns the defaults without a secret. Tests fill Secret in.
func DefaultConfig() Config {
	return Config{
		Format:     FormatJWT,
		Issuer:     "one-car",
		AccessTTL:  time.Hour,
		RefreshTTL: 14 * 24 * time.Hour,
		ClockSkew:  0,
	}
}

// LoadConfigFromEnv overlays ONECAR_TOKEN_* and ONECAR_*_TTL on DefaultConfig.
// ONECAR_TOKEN_SECRET is required.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that a usable codec needs.
func (c Config) Validate() error {
	switch Format(strings.ToLower(string(c.Format))) {
	case FormatJWT, FormatPASETO:
	default:
		return fmt.Errorf("%w: unknown token format %q", ErrConfig, c.Format)
	}
	if len(c.Secret) < MinSecretBytes {
		return fmt.Errorf("%w: token secret must be at least %d bytes", ErrConfig, MinSecretBytes)
	}
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%w: empty issuer", ErrConfig)
	}
	if c.AccessTTL < time.Second || c.RefreshTTL < time.Second {
		return fmt.Errorf("%w: token lifetimes must be at least 1s", ErrConfig)
	}
	if c.RefreshTTL < c.AccessTTL {
		return fmt.Errorf("%w: refresh ttl shorter than access ttl", ErrConfig)
	}
	if c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute {
		return fmt.Errorf("%w: clock skew out of range", ErrConfig)
	}
	return nil
}
