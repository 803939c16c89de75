package oauthapi

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/httpx"
)

// ErrConfig is returned for invalid OAuth API configuration.
var ErrConfig = errors.New("invalid oauth api config")

// Config holds the browser landing pages of the redirect callback.
type Config struct {
	SuccessURL   string `env:"ONECAR_OAUTH_SUCCESS_URL"`
	ErrorURL     string `env:"ONECAR_OAUTH_ERROR_URL"`
	MaxBodyBytes int64  `env:"ONECAR_AUTH_MAX_BODY_BYTES"`
}

// DefaultConfig lands on relative paths served by the frontend.
func DefaultConfig() Config {
	return Config{
		SuccessURL:   "/oauth/success",
		ErrorURL:     "/oauth/error",
		MaxBodyBytes: httpx.DefaultMaxBodyBytes,
	}
}

// LoadConfigFromEnv overlays ONECAR_OAUTH_SUCCESS_URL and
// ONECAR_OAUTH_ERROR_URL on DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	for name, raw := range map[string]string{"success": cfg.SuccessURL, "error": cfg.ErrorURL} {
		if _, err := url.Parse(raw); err != nil || strings.TrimSpace(raw) == "" {
			return Config{}, fmt.Errorf("%w: invalid %s url %q", ErrConfig, name, raw)
		}
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("%w: ONECAR_AUTH_MAX_BODY_BYTES must be positive", ErrConfig)
	}
	return cfg, nil
}
