package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	authapi "github.com/Hana-Open-Banking/one-car/cmd/internal/auth/api"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/auth/session"
	oauthapi "github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/api"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/correlation"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/provider"
	"github.com/Hana-Open-Banking/one-car/cmd/security/password"
)

// ErrConfig is returned for invalid server configuration.
var ErrConfig = errors.New("invalid server config")

// ServerConfig holds process-level settings.
type ServerConfig struct {
	HTTPAddr  string `env:"ONECAR_HTTP_ADDR"`
	LogLevel  string `env:"ONECAR_LOG_LEVEL"`
	LogFormat string `env:"ONECAR_LOG_FORMAT"`

	ReadHeaderTimeout time.Duration `env:"ONECAR_HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `env:"ONECAR_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `env:"ONECAR_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `env:"ONECAR_HTTP_IDLE_TIMEOUT"`
	MaxHeaderBytes    int           `env:"ONECAR_HTTP_MAX_HEADER_BYTES"`

	// DatabaseURL selects Postgres. When empty the embedded SQLite file at
	// SQLitePath is used.
	DatabaseURL string `env:"ONECAR_DATABASE_URL"`
	SQLitePath  string `env:"ONECAR_SQLITE_PATH"`
	DBMaxConns  int32  `env:"ONECAR_DB_MAX_CONNS"`
	DBMinConns  int32  `env:"ONECAR_DB_MIN_CONNS"`

	// ReadinessRequireDB makes /readyz fail unless Postgres is configured.
	ReadinessRequireDB bool `env:"ONECAR_READINESS_REQUIRE_DB"`

	// RequireTokenHMAC refuses to start without a keyed token hasher.
	RequireTokenHMAC bool   `env:"ONECAR_REQUIRE_TOKEN_HMAC"`
	TokenHMACKey     string `env:"ONECAR_TOKEN_HMAC_KEY"`

	// PairPurgeGrace keeps expired token pairs this long before deletion.
	PairPurgeGrace time.Duration `env:"ONECAR_PAIR_PURGE_GRACE"`
}

// Config is the immutable runtime configuration, built once at startup.
type Config struct {
	Server      ServerConfig
	Session     session.Config
	Password    password.Config
	Correlation correlation.Config
	Provider    provider.Config
	AuthAPI     authapi.Config
	OAuthAPI    oauthapi.Config
}

// DefaultServerConfig returns listener, timeout and storage defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:          "0.0.0.0:8080",
		LogLevel:          "info",
		LogFormat:         "json",
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		SQLitePath:        "onecar.db",
		DBMaxConns:        10,
		PairPurgeGrace:    24 * time.Hour,
	}
}

// LoadConfig reads every component configuration from the environment.
func LoadConfig() (Config, error) {
	server := DefaultServerConfig()
	if err := env.Parse(&server); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := server.Validate(); err != nil {
		return Config{}, err
	}

	cfg := Config{Server: server}
	var err error
	if cfg.Session, err = session.LoadConfigFromEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Password, err = password.FromEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Correlation, err = correlation.LoadConfigFromEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Provider, err = provider.LoadConfigFromEnv(); err != nil {
		return Config{}, err
	}
	if cfg.AuthAPI, err = authapi.LoadConfigFromEnv(); err != nil {
		return Config{}, err
	}
	if cfg.OAuthAPI, err = oauthapi.LoadConfigFromEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c ServerConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "pretty":
	default:
		return fmt.Errorf("%w: ONECAR_LOG_FORMAT must be json or pretty", ErrConfig)
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%w: empty ONECAR_HTTP_ADDR", ErrConfig)
	}
	if c.DatabaseURL == "" && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("%w: one of ONECAR_DATABASE_URL or ONECAR_SQLITE_PATH is required", ErrConfig)
	}
	if c.DBMaxConns < 0 || c.DBMinConns < 0 || (c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns) {
		return fmt.Errorf("%w: invalid pool bounds", ErrConfig)
	}
	if c.PairPurgeGrace < 0 {
		return fmt.Errorf("%w: negative ONECAR_PAIR_PURGE_GRACE", ErrConfig)
	}
	return nil
}
