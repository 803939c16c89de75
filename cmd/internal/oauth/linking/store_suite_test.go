package linking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

type storeFactory func(t *testing.T) (Store, storage.TxManager)

func runStoreSuite(t *testing.T, newStore storeFactory) {
	t.Helper()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cred := func(account, subject string) Credential {
		return Credential{
			AccountID:    account,
			SubjectID:    subject,
			AccessToken:  "at-" + subject,
			RefreshToken: "rt-" + subject,
			TokenType:    "Bearer",
			Scope:        "login inquiry transfer",
			ExpiresIn:    3600,
			ExpiresAt:    now.Add(time.Hour),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	t.Run("replace keeps one row per account", func(t *testing.T) {
		store, tx := newStore(t)
		ctx := context.Background()

		for _, subject := range []string{"s1", "s2"} {
			err := tx.WithinTx(ctx, func(ctx context.Context) error {
				return store.Replace(ctx, cred("acct-1", subject))
			})
			if err != nil {
				t.Fatalf("Replace(%s): %v", subject, err)
			}
		}

		got, err := store.Get(ctx, "acct-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.SubjectID != "s2" || got.AccessToken != "at-s2" {
			t.Fatalf("unexpected credential: %+v", got)
		}
		if !got.ExpiresAt.Equal(now.Add(time.Hour)) || got.ExpiresIn != 3600 {
			t.Fatalf("unexpected expiry: %+v", got)
		}
	})

	t.Run("rolled back replace leaves old row", func(t *testing.T) {
		store, tx := newStore(t)
		ctx := context.Background()

		if err := tx.WithinTx(ctx, func(ctx context.Context) error {
			return store.Replace(ctx, cred("acct-1", "s1"))
		}); err != nil {
			t.Fatalf("Replace: %v", err)
		}

		boom := errors.New("boom")
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := store.Replace(ctx, cred("acct-1", "s2")); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		got, err := store.Get(ctx, "acct-1")
		if err != nil || got.SubjectID != "s1" {
			t.Fatalf("old credential must survive: %+v, %v", got, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store, tx := newStore(t)
		ctx := context.Background()

		if err := tx.WithinTx(ctx, func(ctx context.Context) error {
			return store.Replace(ctx, cred("acct-1", "s1"))
		}); err != nil {
			t.Fatalf("Replace: %v", err)
		}

		removed, err := store.Delete(ctx, "acct-1")
		if err != nil || !removed {
			t.Fatalf("Delete: %v %v", removed, err)
		}
		removed, err = store.Delete(ctx, "acct-1")
		if err != nil || removed {
			t.Fatalf("second Delete: %v %v", removed, err)
		}
		if _, err := store.Get(ctx, "acct-1"); !errors.Is(err, ErrCredentialNotFound) {
			t.Fatalf("expected ErrCredentialNotFound, got %v", err)
		}
	})
}
