package provider

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrConfig is returned for invalid provider configuration.
var ErrConfig = errors.New("invalid provider config")

// Config describes the open-banking authorization server.
type Config struct {
	BaseURL      string        `env:"ONECAR_PROVIDER_BASE_URL"`
	ClientID     string        `env:"ONECAR_PROVIDER_CLIENT_ID"`
	ClientSecret string        `env:"ONECAR_PROVIDER_CLIENT_SECRET"`
	RedirectURI  string        `env:"ONECAR_PROVIDER_REDIRECT_URI"`
	Scope        string        `env:"ONECAR_PROVIDER_SCOPE"`
	Timeout      time.Duration `env:"ONECAR_PROVIDER_TIMEOUT"`
}

// DefaultConfig points at the provider test bed with no client credentials.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://testapi.openbanking.or.kr",
		Scope:   "login inquiry transfer",
		Timeout: 10 * time.Second,
	}
}

// LoadConfigFromEnv overlays ONECAR_PROVIDER_* on DefaultConfig.
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

func (c Config) Validate() error {
	if err := absoluteURL(c.BaseURL); err != nil {
		return fmt.Errorf("%w: base url: %v", ErrConfig, err)
	}
	if err := absoluteURL(c.RedirectURI); err != nil {
		return fmt.Errorf("%w: redirect uri: %v", ErrConfig, err)
	}
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("%w: client id and secret are required", ErrConfig)
	}
	if strings.TrimSpace(c.Scope) == "" {
		return fmt.Errorf("%w: empty scope", ErrConfig)
	}
	if c.Timeout <= 0 || c.Timeout > time.Minute {
		return fmt.Errorf("%w: timeout must be in (0, 1m]", ErrConfig)
	}
	return nil
}

func absoluteURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
