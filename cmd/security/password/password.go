package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	phcAlgorithm  = "argon2id"
	argon2Version = argon2.Version
)

var b64 = base64.RawStdEncoding

// Hash validates password against the policy and returns its encoded
// Argon2id hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	return c.hash(password)
}

// HashUnchecked hashes without applying the policy. Used for placeholder
// hashes that only exist to equalize login timing.
func (c Config) HashUnchecked(password string) (string, error) {
	return c.hash(password)
}

func (c Config) hash(password string) (string, error) {
	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	p := c.Params
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return encode(p, salt, key), nil
}

// Verify reports whether password matches encodedHash.
// A malformed or out-of-bounds hash yields (false, ErrInvalidHash).
func (c Config) Verify(encodedHash, password string) (bool, error) {
	p, salt, want, err := decode(encodedHash)
	if err != nil {
		return false, err
	}
	if !c.acceptable(p) {
		return false, ErrInvalidHash
	}

	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with parameters
// other than the current ones.
func (c Config) NeedsRehash(encodedHash string) bool {
	p, _, _, err := decode(encodedHash)
	if err != nil {
		return true
	}
	cur := c.Params
	return p.MemoryKiB != cur.MemoryKiB ||
		p.Iterations != cur.Iterations ||
		p.Parallelism != cur.Parallelism ||
		p.KeyLength != cur.KeyLength
}

// acceptable rejects stored parameters far above the configured cost.
// Smaller, older settings still verify.
func (c Config) acceptable(got Argon2idParams) bool {
	lim := c.Params
	switch {
	case got.MemoryKiB > lim.MemoryKiB*2,
		got.Iterations > lim.Iterations*2,
		uint32(got.Parallelism) > uint32(lim.Parallelism)*2,
		got.SaltLength < 8 || got.SaltLength > 64,
		got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

func encode(p Argon2idParams, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2Version,
		p.MemoryKiB, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	)
}

// decode parses $argon2id$v=19$m=..,t=..,p=..$salt$key.
func decode(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != phcAlgorithm {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	return Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  iter,
		Parallelism: uint8(par),        // #nosec G115 -- checked <= 255 above.
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by input length.
		KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by input length.
	}, salt, key, nil
}
