package password

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrPasswordCharset  = errors.New("password contains unsupported characters")
	ErrWeakPassword     = errors.New("password must mix lowercase, uppercase, digit and symbol")

	// ErrInvalidHash is returned by Verify for a malformed PHC string.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrConfig is returned by FromEnv for out-of-range parameters.
	ErrConfig = errors.New("invalid password config")
)

// Validate checks the password policy. It does not mutate input.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(c.Policy.Specials, r):
			special = true
		default:
			if c.Policy.RestrictCharset {
				return ErrPasswordCharset
			}
		}
	}

	if (c.Policy.RequireLower && !lower) ||
		(c.Policy.RequireUpper && !upper) ||
		(c.Policy.RequireDigit && !digit) ||
		(c.Policy.RequireSpecial && !special) {
		return ErrWeakPassword
	}

	return nil
}
