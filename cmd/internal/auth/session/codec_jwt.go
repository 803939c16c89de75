package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtClaims struct {
	Type string `json:"typ"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type jwtCodec struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	skew       time.Duration
}

func newJWTCodec(cfg Config) *jwtCodec {
	return &jwtCodec{
		key:        []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		skew:       cfg.ClockSkew,
	}
}

func (c *jwtCodec) IssueAccess(subject, role string, now time.Time) (string, time.Time, error) {
	return c.issue(subject, role, TypeAccess, c.accessTTL, now)
}

func (c *jwtCodec) IssueRefresh(subject string, now time.Time) (string, time.Time, error) {
	return c.issue(subject, "", TypeRefresh, c.refreshTTL, now)
}

func (c *jwtCodec) issue(subject, role string, typ TokenType, ttl time.Duration, now time.Time) (string, time.Time, error) {
	d, err := newDraft(c.issuer, subject, role, typ, ttl, now)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := jwtClaims{
		Type: string(d.Type),
		Role: d.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        d.ID,
			Issuer:    d.Issuer,
			Subject:   d.Subject,
			IssuedAt:  jwt.NewNumericDate(d.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(d.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, d.ExpiresAt, nil
}

func (c *jwtCodec) Verify(token string, now time.Time) (Claims, error) {
	var claims jwtClaims

	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(c.skew),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		return Claims{}, classifyJWTError(err)
	}

	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Claims{}, ErrMalformed
	}
	typ := TokenType(claims.Type)
	if !knownType(typ) {
		return Claims{}, ErrUnsupportedType
	}

	return Claims{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Role:      claims.Role,
		Type:      typ,
		IssuedAt:  claims.IssuedAt.UTC(),
		ExpiresAt: claims.ExpiresAt.UTC(),
	}, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		// Signed with our key but minted for another issuer.
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
