package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrHMACKeyMissing is returned by NewStrictHasher for an empty key.
	ErrHMACKeyMissing = errors.New("token hmac key is not set")
	// ErrHMACKeyTooShort is returned by NewStrictHasher below the minimum length.
	ErrHMACKeyTooShort = errors.New("token hmac key is shorter than required")
)

// MinHMACKeyBytes is the smallest key accepted when HMAC is required.
const MinHMACKeyBytes = 32

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher derives the stored digest of a token.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher. An empty key selects SHA-256 mode.
func NewHasher(key string) Hasher {
	key = strings.TrimSpace(key)
	if key == "" {
		return Hasher{}
	}
	return Hasher{key: []byte(key)}
}

// NewStrictHasher returns an HMAC Hasher and rejects missing or short keys.
func NewStrictHasher(key string, minBytes int) (Hasher, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Hasher{}, ErrHMACKeyMissing
	}
	if minBytes > 0 && len(key) < minBytes {
		return Hasher{}, ErrHMACKeyTooShort
	}
	return Hasher{key: []byte(key)}, nil
}

// HMACEnabled reports whether the hasher is keyed.
func (h Hasher) HMACEnabled() bool { return len(h.key) > 0 }

// Hash returns the 64-char hex digest stored for tok.
func (h Hasher) Hash(tok string) string {
	if len(h.key) == 0 {
		return HashSHA256Hex(tok)
	}
	return HashHMACSHA256Hex(tok, h.key)
}

// Equal compares two hex digests in constant time.
// Digests of unexpected length never match.
func Equal(a, b string) bool {
	if len(a) != 64 || len(b) != 64 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
