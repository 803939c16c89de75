package session

import (
	"context"
	"strings"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/identity/ids"
	"github.com/Hana-Open-Banking/one-car/cmd/security/token"
)

// maxTokenLen bounds presented tokens before hashing.
const maxTokenLen = 4096

// Ledger records issued pairs by token hash and answers liveness queries.
type Ledger struct {
	store  Store
	hasher token.Hasher
}

// NewLedger returns a Ledger hashing tokens with hasher.
func NewLedger(store Store, hasher token.Hasher) *Ledger {
	return &Ledger{store: store, hasher: hasher}
}

// RecordIssued stores a new live pair for accountID.
func (l *Ledger) RecordIssued(ctx context.Context, accountID, access, refresh string, accessExp, refreshExp, now time.Time) (Pair, error) {
	id, err := ids.NewULID(now)
	if err != nil {
		return Pair{}, err
	}

	p := Pair{
		ID:               id,
		AccountID:        accountID,
		AccessHash:       l.hasher.Hash(access),
		RefreshHash:      l.hasher.Hash(refresh),
		AccessExpiresAt:  accessExp.UTC(),
		RefreshExpiresAt: refreshExp.UTC(),
		CreatedAt:        now.UTC(),
	}
	if err := l.store.Insert(ctx, p); err != nil {
		return Pair{}, err
	}
	return p, nil
}

// FindLiveByAccess returns the unrevoked pair holding access.
// Expiry is left to the caller.
func (l *Ledger) FindLiveByAccess(ctx context.Context, access string) (Pair, error) {
	if !presentable(access) {
		return Pair{}, ErrPairNotFound
	}
	return l.store.FindLiveByAccessHash(ctx, l.hasher.Hash(access))
}

// FindLiveByRefresh returns the unrevoked pair holding refresh.
func (l *Ledger) FindLiveByRefresh(ctx context.Context, refresh string) (Pair, error) {
	if !presentable(refresh) {
		return Pair{}, ErrPairNotFound
	}
	return l.store.FindLiveByRefreshHash(ctx, l.hasher.Hash(refresh))
}

// Revoke revokes one pair. It reports false when the pair was already revoked.
func (l *Ledger) Revoke(ctx context.Context, pairID string, now time.Time) (bool, error) {
	return l.store.Revoke(ctx, pairID, now.UTC())
}

// RevokeAllForAccount revokes every live pair of accountID.
func (l *Ledger) RevokeAllForAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	return l.store.RevokeAllForAccount(ctx, accountID, now.UTC())
}

// Purge deletes pairs whose refresh token expired more than grace ago.
func (l *Ledger) Purge(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	return l.store.DeleteExpired(ctx, now.UTC().Add(-grace))
}

func presentable(tok string) bool {
	return strings.TrimSpace(tok) != "" && len(tok) <= maxTokenLen
}
