package correlation

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls session lifetime and the background sweep.
type Config struct {
	SessionTTL    time.Duration `env:"ONECAR_OAUTH_SESSION_TTL"`
	SweepInterval time.Duration `env:"ONECAR_OAUTH_SWEEP_INTERVAL"`
}

// DefaultConfig returns a 30 minute lifetime swept every 10 minutes.
func DefaultConfig() Config {
	return Config{
		SessionTTL:    30 * time.Minute,
		SweepInterval: 10 * time.Minute,
	}
}

// LoadConfigFromEnv overlays ONECAR_OAUTH_SESSION_TTL and
// ONECAR_OAUTH_SWEEP_INTERVAL on DefaultConfig.
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
	if c.SessionTTL < time.Minute || c.SessionTTL > 24*time.Hour {
		return fmt.Errorf("%w: session ttl must be between 1m and 24h", ErrConfig)
	}
	if c.SweepInterval < time.Second {
		return fmt.Errorf("%w: sweep interval must be at least 1s", ErrConfig)
	}
	return nil
}
