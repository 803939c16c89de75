package identity

import (
	"errors"
	"sync"

	"github.com/Hana-Open-Banking/one-car/cmd/security/password"
)

// Passwords hashes and verifies account passwords with one fixed config.
type Passwords struct {
	cfg password.Config

	dummyOnce sync.Once
	dummy     string
}

// NewPasswords returns a Passwords using cfg.
func NewPasswords(cfg password.Config) *Passwords {
	return &Passwords{cfg: cfg}
}

// Validate applies the password policy. Failures are ErrInvalidInput
// OpErrors naming the "password" field and wrapping the policy error.
func (p *Passwords) Validate(plain string) error {
	if err := p.cfg.Validate(plain); err != nil {
		return passwordInvalid("identity.Passwords.Validate", err)
	}
	return nil
}

// Hash validates and hashes plain.
func (p *Passwords) Hash(plain string) (string, error) {
	h, err := p.cfg.Hash(plain)
	if err != nil {
		if isPolicyErr(err) {
			return "", passwordInvalid("identity.Passwords.Hash", err)
		}
		return "", err
	}
	return h, nil
}

// Verify checks plain against the account's stored hash. A malformed stored
// hash counts as a mismatch.
func (p *Passwords) Verify(a Authenticatable, plain string) bool {
	ok, err := p.cfg.Verify(a.CredentialHash(), plain)
	return err == nil && ok
}

// VerifyDummy burns the same work as a real verification. It runs when the
// account does not exist so response timing does not reveal that.
func (p *Passwords) VerifyDummy(plain string) {
	p.dummyOnce.Do(func() {
		h, err := p.cfg.HashUnchecked("onecar-dummy-credential")
		if err == nil {
			p.dummy = h
		}
	})
	if p.dummy == "" {
		return
	}
	_, _ = p.cfg.Verify(p.dummy, plain)
}

const FieldPassword = "password"

type passwordError struct {
	OpError
	cause error
}

func (e passwordError) Unwrap() []error { return []error{e.OpError, e.cause} }

func passwordInvalid(op string, cause error) error {
	return passwordError{OpError: OpError{Op: op, Kind: ErrInvalidInput, Msg: FieldPassword}, cause: cause}
}

func isPolicyErr(err error) bool {
	return errors.Is(err, password.ErrPasswordTooShort) ||
		errors.Is(err, password.ErrPasswordTooLong) ||
		errors.Is(err, password.ErrPasswordCharset) ||
		errors.Is(err, password.ErrWeakPassword)
}
