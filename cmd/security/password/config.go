package password

import (
	"fmt"
	"math"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation.
type Policy struct {
	MinLength int
	MaxLength int

	RequireLower   bool
	RequireUpper   bool
	RequireDigit   bool
	RequireSpecial bool

	// Specials lists the accepted symbol characters.
	Specials string
	// If true, only ASCII letters, digits and Specials are accepted.
	RestrictCharset bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the production baseline.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:       8,
			MaxLength:       20,
			RequireLower:    true,
			RequireUpper:    true,
			RequireDigit:    true,
			RequireSpecial:  true,
			Specials:        "@$!%*?&",
			RestrictCharset: true,
		},
	}
}

type envConfig struct {
	MinLength   int    `env:"ONECAR_PASSWORD_MIN_LEN"`
	MaxLength   int    `env:"ONECAR_PASSWORD_MAX_LEN"`
	MemoryKiB   uint32 `env:"ONECAR_ARGON2_MEMORY_KIB"`
	Iterations  uint32 `env:"ONECAR_ARGON2_ITERATIONS"`
	Parallelism uint32 `env:"ONECAR_ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"ONECAR_ARGON2_SALT_LEN"`
	KeyLength   uint32 `env:"ONECAR_ARGON2_KEY_LEN"`
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
// - ONECAR_PASSWORD_MIN_LEN, ONECAR_PASSWORD_MAX_LEN
// - ONECAR_ARGON2_MEMORY_KIB, ONECAR_ARGON2_ITERATIONS, ONECAR_ARGON2_PARALLELISM
// - ONECAR_ARGON2_SALT_LEN, ONECAR_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	raw := envConfig{
		MinLength:   cfg.Policy.MinLength,
		MaxLength:   cfg.Policy.MaxLength,
		MemoryKiB:   cfg.Params.MemoryKiB,
		Iterations:  cfg.Params.Iterations,
		Parallelism: uint32(cfg.Params.Parallelism),
		SaltLength:  cfg.Params.SaltLength,
		KeyLength:   cfg.Params.KeyLength,
	}
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	checks := []struct {
		name     string
		val      uint64
		min, max uint64
	}{
		{"ONECAR_PASSWORD_MIN_LEN", uint64(max(raw.MinLength, 0)), 1, 1024},
		{"ONECAR_PASSWORD_MAX_LEN", uint64(max(raw.MaxLength, 0)), 1, 4096},
		{"ONECAR_ARGON2_MEMORY_KIB", uint64(raw.MemoryKiB), 8 * 1024, 1024 * 1024},
		{"ONECAR_ARGON2_ITERATIONS", uint64(raw.Iterations), 1, 20},
		{"ONECAR_ARGON2_PARALLELISM", uint64(raw.Parallelism), 1, math.MaxUint8},
		{"ONECAR_ARGON2_SALT_LEN", uint64(raw.SaltLength), 8, 64},
		{"ONECAR_ARGON2_KEY_LEN", uint64(raw.KeyLength), 16, 64},
	}
	for _, c := range checks {
		if c.val < c.min || c.val > c.max {
			return Config{}, fmt.Errorf("%w: %s out of range [%d..%d]", ErrConfig, c.name, c.min, c.max)
		}
	}

	if raw.MinLength > raw.MaxLength {
		return Config{}, fmt.Errorf("%w: min_len(%d) > max_len(%d)", ErrConfig, raw.MinLength, raw.MaxLength)
	}

	cfg.Policy.MinLength = raw.MinLength
	cfg.Policy.MaxLength = raw.MaxLength
	cfg.Params = Argon2idParams{
		MemoryKiB:   raw.MemoryKiB,
		Iterations:  raw.Iterations,
		Parallelism: uint8(raw.Parallelism), // #nosec G115 -- bounded above.
		SaltLength:  raw.SaltLength,
		KeyLength:   raw.KeyLength,
	}
	return cfg, nil
}
