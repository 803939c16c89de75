package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
	"github.com/Hana-Open-Banking/one-car/cmd/security/token"
)

type ledgerFactory func(t *testing.T) (*Ledger, storage.TxManager)

func runLedgerSuite(t *testing.T, newLedger ledgerFactory) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	t.Run("record and find live", func(t *testing.T) {
		l, _ := newLedger(t)
		ctx := context.Background()

		p, err := l.RecordIssued(ctx, "acct-1", "access-1", "refresh-1", now.Add(time.Hour), now.Add(24*time.Hour), now)
		if err != nil {
			t.Fatalf("RecordIssued: %v", err)
		}
		if p.AccessHash == "access-1" || len(p.AccessHash) != 64 {
			t.Fatalf("tokens must be stored hashed: %q", p.AccessHash)
		}

		byAccess, err := l.FindLiveByAccess(ctx, "access-1")
		if err != nil || byAccess.ID != p.ID {
			t.Fatalf("FindLiveByAccess: %+v, %v", byAccess, err)
		}
		if !byAccess.AccessExpiresAt.Equal(now.Add(time.Hour)) {
			t.Fatalf("access exp = %v", byAccess.AccessExpiresAt)
		}

		byRefresh, err := l.FindLiveByRefresh(ctx, "refresh-1")
		if err != nil || byRefresh.ID != p.ID || byRefresh.AccountID != "acct-1" {
			t.Fatalf("FindLiveByRefresh: %+v, %v", byRefresh, err)
		}

		if _, err := l.FindLiveByAccess(ctx, "refresh-1"); !errors.Is(err, ErrPairNotFound) {
			t.Fatalf("refresh token must not match access column, got %v", err)
		}
		if _, err := l.FindLiveByAccess(ctx, ""); !errors.Is(err, ErrPairNotFound) {
			t.Fatalf("empty token: got %v", err)
		}
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		l, _ := newLedger(t)
		ctx := context.Background()

		p, err := l.RecordIssued(ctx, "acct-2", "access-2", "refresh-2", now.Add(time.Hour), now.Add(24*time.Hour), now)
		if err != nil {
			t.Fatalf("RecordIssued: %v", err)
		}

		changed, err := l.Revoke(ctx, p.ID, now)
		if err != nil || !changed {
			t.Fatalf("first revoke: changed=%v err=%v", changed, err)
		}
		changed, err = l.Revoke(ctx, p.ID, now.Add(time.Minute))
		if err != nil || changed {
			t.Fatalf("second revoke: changed=%v err=%v", changed, err)
		}

		if _, err := l.FindLiveByAccess(ctx, "access-2"); !errors.Is(err, ErrPairNotFound) {
			t.Fatalf("revoked pair must not be live, got %v", err)
		}
		if _, err := l.FindLiveByRefresh(ctx, "refresh-2"); !errors.Is(err, ErrPairNotFound) {
			t.Fatalf("revoked pair must not be live, got %v", err)
		}
	})

	t.Run("revoke all for account", func(t *testing.T) {
		l, _ := newLedger(t)
		ctx := context.Background()

		for i, tok := range []string{"a", "b", "c"} {
			acct := "acct-3"
			if i == 2 {
				acct = "acct-other"
			}
			if _, err := l.RecordIssued(ctx, acct, "access-"+tok, "refresh-"+tok, now.Add(time.Hour), now.Add(24*time.Hour), now); err != nil {
				t.Fatalf("RecordIssued: %v", err)
			}
		}

		n, err := l.RevokeAllForAccount(ctx, "acct-3", now)
		if err != nil || n != 2 {
			t.Fatalf("RevokeAllForAccount: n=%d err=%v", n, err)
		}
		n, err = l.RevokeAllForAccount(ctx, "acct-3", now)
		if err != nil || n != 0 {
			t.Fatalf("second RevokeAllForAccount: n=%d err=%v", n, err)
		}
		if _, err := l.FindLiveByAccess(ctx, "access-c"); err != nil {
			t.Fatalf("other account pair must stay live: %v", err)
		}
	})

	t.Run("duplicate token hash rejected", func(t *testing.T) {
		l, _ := newLedger(t)
		ctx := context.Background()

		if _, err := l.RecordIssued(ctx, "acct-4", "dup-access", "refresh-x", now.Add(time.Hour), now.Add(24*time.Hour), now); err != nil {
			t.Fatalf("RecordIssued: %v", err)
		}
		if _, err := l.RecordIssued(ctx, "acct-4", "dup-access", "refresh-y", now.Add(time.Hour), now.Add(24*time.Hour), now); err == nil {
			t.Fatalf("expected unique violation on access hash")
		}
	})

	t.Run("purge removes only long-expired pairs", func(t *testing.T) {
		l, _ := newLedger(t)
		ctx := context.Background()

		if _, err := l.RecordIssued(ctx, "acct-5", "old-access", "old-refresh", now.Add(-47*time.Hour), now.Add(-48*time.Hour), now.Add(-72*time.Hour)); err != nil {
			t.Fatalf("RecordIssued: %v", err)
		}
		if _, err := l.RecordIssued(ctx, "acct-5", "new-access", "new-refresh", now.Add(time.Hour), now.Add(24*time.Hour), now); err != nil {
			t.Fatalf("RecordIssued: %v", err)
		}

		n, err := l.Purge(ctx, now, 24*time.Hour)
		if err != nil || n != 1 {
			t.Fatalf("Purge: n=%d err=%v", n, err)
		}
		if _, err := l.FindLiveByAccess(ctx, "new-access"); err != nil {
			t.Fatalf("fresh pair must survive purge: %v", err)
		}
	})

	t.Run("concurrent revoke of one pair has one winner", func(t *testing.T) {
		l, tx := newLedger(t)
		ctx := context.Background()

		if _, err := l.RecordIssued(ctx, "acct-6", "race-access", "race-refresh", now.Add(time.Hour), now.Add(24*time.Hour), now); err != nil {
			t.Fatalf("RecordIssued: %v", err)
		}

		const workers = 4
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := tx.WithinTx(ctx, func(ctx context.Context) error {
					p, err := l.FindLiveByRefresh(ctx, "race-refresh")
					if err != nil {
						return err
					}
					changed, err := l.Revoke(ctx, p.ID, now)
					if err != nil {
						return err
					}
					if changed {
						mu.Lock()
						wins++
						mu.Unlock()
					}
					return nil
				})
				if err != nil && !errors.Is(err, ErrPairNotFound) {
					t.Errorf("worker: %v", err)
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("winners = %d, want 1", wins)
		}
	})
}

func testHasher() token.Hasher {
	return token.NewHasher("ledger-test-hmac-key-0123456789abcdef")
}
