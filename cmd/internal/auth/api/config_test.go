package authapi

import (
	"errors"
	"testing"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ONECAR_AUTH_TRUST_PROXY", "true")
	t.Setenv("ONECAR_AUTH_MAX_BODY_BYTES", "4096")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if !cfg.TrustProxy || cfg.MaxBodyBytes != 4096 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"ONECAR_AUTH_MAX_BODY_BYTES": "-1",
		"ONECAR_AUTH_TRUST_PROXY":    "maybe",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
