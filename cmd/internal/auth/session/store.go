package session

import (
	"context"
	"time"
)

// Pair is one recorded issuance of an access and refresh token.
// Only token hashes are persisted.
type Pair struct {
	ID               string
	AccountID        string
	AccessHash       string
	RefreshHash      string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
	RevokedAt        *time.Time
}

// Live reports whether the pair has not been revoked.
func (p Pair) Live() bool { return p.RevokedAt == nil }

// Store persists pairs. Methods join the transaction carried by ctx.
type Store interface {
	Insert(ctx context.Context, p Pair) error

	// FindLiveByAccessHash returns ErrPairNotFound for missing or revoked pairs.
	FindLiveByAccessHash(ctx context.Context, hash string) (Pair, error)

	// FindLiveByRefreshHash returns ErrPairNotFound for missing or revoked
	// pairs. Backends with row locks lock the pair until the transaction ends.
	FindLiveByRefreshHash(ctx context.Context, hash string) (Pair, error)

	// Revoke sets revoked_at if unset and reports whether it changed.
	Revoke(ctx context.Context, id string, now time.Time) (bool, error)

	RevokeAllForAccount(ctx context.Context, accountID string, now time.Time) (int64, error)

	// DeleteExpired removes pairs whose refresh token expired before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
