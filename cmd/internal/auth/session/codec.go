package session

import (
	"strings"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/identity/ids"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims is the verified content of a session token.
type Claims struct {
	ID        string
	Subject   string
	Role      string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec mints and verifies session tokens. Implementations are stateless and
// safe for concurrent use.
type Codec interface {
	IssueAccess(subject, role string, now time.Time) (token string, exp time.Time, err error)
	IssueRefresh(subject string, now time.Time) (token string, exp time.Time, err error)

	// Verify returns ErrInvalidSignature, ErrMalformed, ErrExpired or
	// ErrUnsupportedType on failure.
	Verify(token string, now time.Time) (Claims, error)
}

// NewCodec builds the Codec selected by cfg.Format.
func NewCodec(cfg Config) (Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch Format(strings.ToLower(string(cfg.Format))) {
	case FormatPASETO:
		return newPasetoCodec(cfg)
	default:
		return newJWTCodec(cfg), nil
	}
}

// draft is the claim set shared by both codecs before encoding.
type draft struct {
	Claims
	Issuer string
}

// newDraft builds claims with second precision, matching both wire formats.
func newDraft(issuer, subject, role string, typ TokenType, ttl time.Duration, now time.Time) (draft, error) {
	now = now.UTC().Truncate(time.Second)
	jti, err := ids.NewULID(now)
	if err != nil {
		return draft{}, err
	}
	return draft{
		Claims: Claims{
			ID:        jti,
			Subject:   subject,
			Role:      role,
			Type:      typ,
			IssuedAt:  now,
			ExpiresAt: now.Add(ttl),
		},
		Issuer: issuer,
	}, nil
}

func knownType(t TokenType) bool { return t == TypeAccess || t == TypeRefresh }
