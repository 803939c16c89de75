package identity

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Role is the authorization role granted to an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Account is the credential record of a registered end user.
type Account struct {
	ID           string
	Handle       string
	PasswordHash string
	Name         string
	Email        string
	Phone        string
	Role         Role
	Active       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Authenticatable is the capability the authentication service needs from a
// credential record.
type Authenticatable interface {
	PrincipalID() string
	CredentialHash() string
	IsActive() bool
	GrantedRole() Role
}

var _ Authenticatable = Account{}

func (a Account) PrincipalID() string    { return a.ID }
func (a Account) CredentialHash() string { return a.PasswordHash }
func (a Account) IsActive() bool         { return a.Active }
func (a Account) GrantedRole() Role      { return a.Role }

// NewAccount is the insert payload for CreateAccount.
// PasswordHash must already be an encoded Argon2id hash.
type NewAccount struct {
	Handle       string
	PasswordHash string
	Name         string
	Email        string
	Phone        string
	Role         Role
	Now          time.Time
}

// Profile is the user-supplied part of a sign-up.
type Profile struct {
	Handle string
	Name   string
	Email  string
	Phone  string
}

var (
	handleRe = regexp.MustCompile(`^[a-zA-Z0-9_]{4,20}$`)
	phoneRe  = regexp.MustCompile(`^010-\d{4}-\d{4}$`)
)

// Field names reported by ValidateProfile.
const (
	FieldName = "name"
)

// ValidateHandle checks the handle format: 4 to 20 letters, digits or underscores.
func ValidateHandle(handle string) error {
	if !handleRe.MatchString(handle) {
		return invalid("identity.ValidateHandle", FieldHandle)
	}
	return nil
}

// ValidateProfile checks every sign-up field except the password.
// The returned error is an ErrInvalidInput OpError whose Msg is the field name.
func ValidateProfile(p Profile) error {
	const op = "identity.ValidateProfile"

	if !handleRe.MatchString(p.Handle) {
		return invalid(op, FieldHandle)
	}

	name := strings.TrimSpace(p.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 10 {
		return invalid(op, FieldName)
	}

	if !validEmail(p.Email) {
		return invalid(op, FieldEmail)
	}

	if !phoneRe.MatchString(p.Phone) {
		return invalid(op, FieldPhone)
	}

	return nil
}

// validEmail accepts a bare RFC 5322 address, rejecting display-name forms.
func validEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && at < len(s)-1
}

// NormalizeHandle folds a handle to the key used for uniqueness checks.
func NormalizeHandle(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizeEmail folds an email address to the key used for uniqueness checks.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
