package password

import (
	"errors"
	"testing"
)

// testConfig keeps hashing cheap while exercising the real code path.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	t.Parallel()
	cfg := testConfig()

	h, err := cfg.Hash("Abcd1234!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "Abcd1234!")
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}

	ok, err = cfg.Verify(h, "Abcd1234?")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_AppliesPolicy(t *testing.T) {
	t.Parallel()
	cfg := testConfig()

	if _, err := cfg.Hash("weak"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := cfg.HashUnchecked("weak"); err != nil {
		t.Fatalf("HashUnchecked error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	tests := []struct {
		name string
		pw   string
		want error
	}{
		{"ok", "Abcd1234!", nil},
		{"ok max length", "Abcdefgh1234567890@$", nil},
		{"too short", "Ab1!", ErrPasswordTooShort},
		{"too long", "Abcdefgh1234567890@$x", ErrPasswordTooLong},
		{"no upper", "abcd1234!", ErrWeakPassword},
		{"no lower", "ABCD1234!", ErrWeakPassword},
		{"no digit", "Abcdefgh!", ErrWeakPassword},
		{"no special", "Abcd12345", ErrWeakPassword},
		{"space rejected", "Abcd 1234!", ErrPasswordCharset},
		{"other symbol rejected", "Abcd1234#", ErrPasswordCharset},
		{"non ascii rejected", "Abcd1234!é", ErrPasswordCharset},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := cfg.Validate(tc.pw); !errors.Is(err, tc.want) {
				t.Fatalf("Validate(%q) = %v, want %v", tc.pw, err, tc.want)
			}
		})
	}
}

func TestValidate_Unrestricted(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Policy.RestrictCharset = false

	if err := cfg.Validate("Abcd 1234!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	t.Parallel()
	cfg := testConfig()

	for _, h := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5a2V5a2V5a2V5a2V5a2V5",
	} {
		ok, err := cfg.Verify(h, "whatever")
		if !errors.Is(err, ErrInvalidHash) || ok {
			t.Fatalf("Verify(%q) = %v, %v; want false, ErrInvalidHash", h, ok, err)
		}
	}
}

func TestVerify_RejectsExcessiveCost(t *testing.T) {
	t.Parallel()
	cfg := testConfig()

	big := cfg
	big.Params.Iterations = cfg.Params.Iterations * 3
	h, err := big.Hash("Abcd1234!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if _, err := cfg.Verify(h, "Abcd1234!"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestNeedsRehash(t *testing.T) {
	t.Parallel()
	cfg := testConfig()

	h, err := cfg.Hash("Abcd1234!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if cfg.NeedsRehash(h) {
		t.Fatalf("fresh hash should not need rehash")
	}

	next := cfg
	next.Params.Iterations++
	if !next.NeedsRehash(h) {
		t.Fatalf("changed params should need rehash")
	}
	if !cfg.NeedsRehash("garbage") {
		t.Fatalf("garbage should need rehash")
	}
}
