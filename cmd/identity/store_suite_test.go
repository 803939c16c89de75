package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

type storeFactory func(t *testing.T) (Store, storage.TxManager)

// runStoreSuite exercises the Store contract against one backend.
func runStoreSuite(t *testing.T, newStore storeFactory) {
	t.Run("create and read back", func(t *testing.T) {
		s, _ := newStore(t)
		ctx := context.Background()
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

		a, err := s.CreateAccount(ctx, newAccount("Driver_01", "Driver@Example.com", "010-1111-2222", now))
		if err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		if a.ID == "" || a.Role != RoleUser || !a.Active {
			t.Fatalf("unexpected account: %+v", a)
		}

		got, err := s.GetByHandle(ctx, "driver_01")
		if err != nil {
			t.Fatalf("GetByHandle: %v", err)
		}
		if got.ID != a.ID || got.Handle != "Driver_01" || got.Email != "Driver@Example.com" {
			t.Fatalf("GetByHandle mismatch: %+v", got)
		}
		if !got.CreatedAt.Equal(now) {
			t.Fatalf("created_at = %v, want %v", got.CreatedAt, now)
		}

		byID, err := s.GetByID(ctx, a.ID)
		if err != nil || byID.Handle != a.Handle {
			t.Fatalf("GetByID: %+v, %v", byID, err)
		}
	})

	t.Run("exists checks are case-insensitive where required", func(t *testing.T) {
		s, _ := newStore(t)
		ctx := context.Background()

		if _, err := s.CreateAccount(ctx, newAccount("owner_1", "owner@example.com", "010-2222-3333", time.Time{})); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}

		checks := []struct {
			name string
			fn   func() (bool, error)
			want bool
		}{
			{"handle", func() (bool, error) { return s.HandleExists(ctx, "OWNER_1") }, true},
			{"email", func() (bool, error) { return s.EmailExists(ctx, "Owner@Example.COM") }, true},
			{"phone", func() (bool, error) { return s.PhoneExists(ctx, "010-2222-3333") }, true},
			{"missing handle", func() (bool, error) { return s.HandleExists(ctx, "nobody") }, false},
		}
		for _, c := range checks {
			got, err := c.fn()
			if err != nil {
				t.Fatalf("%s: %v", c.name, err)
			}
			if got != c.want {
				t.Fatalf("%s exists = %v, want %v", c.name, got, c.want)
			}
		}
	})

	t.Run("conflicts name the field", func(t *testing.T) {
		s, _ := newStore(t)
		ctx := context.Background()

		if _, err := s.CreateAccount(ctx, newAccount("first_1", "first@example.com", "010-3333-4444", time.Time{})); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}

		tests := []struct {
			in    NewAccount
			field string
		}{
			{newAccount("FIRST_1", "other1@example.com", "010-3333-0001", time.Time{}), FieldHandle},
			{newAccount("second_1", "FIRST@example.com", "010-3333-0002", time.Time{}), FieldEmail},
			{newAccount("third_1", "other3@example.com", "010-3333-4444", time.Time{}), FieldPhone},
		}
		for _, tc := range tests {
			_, err := s.CreateAccount(ctx, tc.in)
			field, ok := ConflictField(err)
			if !ok || field != tc.field {
				t.Fatalf("expected conflict on %s, got %v", tc.field, err)
			}
		}
	})

	t.Run("not found", func(t *testing.T) {
		s, _ := newStore(t)
		ctx := context.Background()

		if _, err := s.GetByHandle(ctx, "ghost"); !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := s.GetByID(ctx, ""); !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		if err := s.SetActive(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", false, time.Time{}); !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("deactivate", func(t *testing.T) {
		s, _ := newStore(t)
		ctx := context.Background()

		a, err := s.CreateAccount(ctx, newAccount("leaver_1", "leaver@example.com", "010-4444-5555", time.Time{}))
		if err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		if err := s.SetActive(ctx, a.ID, false, time.Now().UTC()); err != nil {
			t.Fatalf("SetActive: %v", err)
		}
		got, err := s.GetByID(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Active {
			t.Fatalf("expected inactive account")
		}
	})

	t.Run("rolled back insert is invisible", func(t *testing.T) {
		s, tx := newStore(t)
		ctx := context.Background()
		boom := errors.New("boom")

		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := s.CreateAccount(ctx, newAccount("temp_1", "temp@example.com", "010-5555-6666", time.Time{})); err != nil {
				return err
			}
			ok, err := s.HandleExists(ctx, "temp_1")
			if err != nil || !ok {
				t.Fatalf("insert should be visible inside tx: %v %v", ok, err)
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		ok, err := s.HandleExists(ctx, "temp_1")
		if err != nil {
			t.Fatalf("HandleExists: %v", err)
		}
		if ok {
			t.Fatalf("rolled back account must not exist")
		}
	})

	t.Run("missing fields are invalid input", func(t *testing.T) {
		s, _ := newStore(t)
		in := newAccount("valid_1", "valid@example.com", "010-6666-7777", time.Time{})
		in.PasswordHash = ""
		if _, err := s.CreateAccount(context.Background(), in); InvalidField(err) != FieldPassword {
			t.Fatalf("expected invalid password field, got %v", err)
		}
	})
}

func newAccount(handle, email, phone string, now time.Time) NewAccount {
	return NewAccount{
		Handle:       handle,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
		Name:         "테스터",
		Email:        email,
		Phone:        phone,
		Now:          now,
	}
}
