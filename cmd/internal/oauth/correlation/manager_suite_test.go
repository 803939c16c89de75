package correlation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type storeFactory func(t *testing.T) (Store, storage.TxManager)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func runManagerSuite(t *testing.T, newStore storeFactory) {
	t.Helper()

	newManager := func(t *testing.T) (*Manager, *testClock, Store) {
		t.Helper()
		store, tx := newStore(t)
		clock := &testClock{now: t0}
		return NewManager(store, tx, DefaultConfig(), clock.Now), clock, store
	}

	t.Run("create issues uuid state", func(t *testing.T) {
		m, _, _ := newManager(t)
		sess, err := m.Create(context.Background(), "acct-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := uuid.Parse(sess.State); err != nil {
			t.Fatalf("state is not a uuid: %q", sess.State)
		}
		if _, err := uuid.Parse(sess.ID); err != nil {
			t.Fatalf("session id is not a uuid: %q", sess.ID)
		}
		if sess.State == sess.ID {
			t.Fatalf("state and session id must differ")
		}
		if !sess.ExpiresAt.Equal(t0.Add(30 * time.Minute)) {
			t.Fatalf("expires_at = %v", sess.ExpiresAt)
		}
	})

	t.Run("validate inside and past lifetime", func(t *testing.T) {
		m, clock, _ := newManager(t)
		ctx := context.Background()
		sess, err := m.Create(ctx, "acct-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		clock.Set(t0.Add(29 * time.Minute))
		got, err := m.Validate(ctx, sess.State)
		if err != nil {
			t.Fatalf("Validate at T+29m: %v", err)
		}
		if got.AccountID != "acct-1" {
			t.Fatalf("account id = %q", got.AccountID)
		}

		clock.Set(t0.Add(31 * time.Minute))
		_, err = m.Validate(ctx, sess.State)
		if !apperr.Is(err, apperr.ExpiredToken) {
			t.Fatalf("Validate at T+31m: expected ExpiredToken, got %v", err)
		}
	})

	t.Run("new session supersedes pending one", func(t *testing.T) {
		m, _, _ := newManager(t)
		ctx := context.Background()
		first, err := m.Create(ctx, "acct-1")
		if err != nil {
			t.Fatalf("Create first: %v", err)
		}
		other, err := m.Create(ctx, "acct-2")
		if err != nil {
			t.Fatalf("Create other: %v", err)
		}
		second, err := m.Create(ctx, "acct-1")
		if err != nil {
			t.Fatalf("Create second: %v", err)
		}

		if _, err := m.Validate(ctx, first.State); !apperr.Is(err, apperr.InvalidToken) {
			t.Fatalf("superseded state: expected InvalidToken, got %v", err)
		}
		if _, err := m.Validate(ctx, second.State); err != nil {
			t.Fatalf("newest state must validate: %v", err)
		}
		if _, err := m.Validate(ctx, other.State); err != nil {
			t.Fatalf("other account untouched: %v", err)
		}
	})

	t.Run("complete exactly once", func(t *testing.T) {
		m, _, store := newManager(t)
		ctx := context.Background()
		sess, err := m.Create(ctx, "acct-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if err := m.Complete(ctx, sess.State); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if err := m.Complete(ctx, sess.State); !apperr.Is(err, apperr.InvalidToken) {
			t.Fatalf("second Complete: expected InvalidToken, got %v", err)
		}
		if _, err := m.Validate(ctx, sess.State); !apperr.Is(err, apperr.InvalidToken) {
			t.Fatalf("completed state: expected InvalidToken, got %v", err)
		}

		row, err := store.FindByState(ctx, sess.State)
		if err != nil {
			t.Fatalf("FindByState: %v", err)
		}
		if !row.Completed || row.CompletedAt == nil {
			t.Fatalf("row not completed: %+v", row)
		}
	})

	t.Run("unknown states", func(t *testing.T) {
		m, _, _ := newManager(t)
		ctx := context.Background()
		for _, state := range []string{"", uuid.NewString(), string(make([]byte, 200))} {
			if _, err := m.Validate(ctx, state); !apperr.Is(err, apperr.InvalidToken) {
				t.Fatalf("Validate(%q): expected InvalidToken, got %v", state, err)
			}
			if err := m.Complete(ctx, state); !apperr.Is(err, apperr.InvalidToken) {
				t.Fatalf("Complete(%q): expected InvalidToken, got %v", state, err)
			}
		}
	})

	t.Run("sweep completes only expired pending", func(t *testing.T) {
		m, clock, _ := newManager(t)
		ctx := context.Background()
		old, err := m.Create(ctx, "acct-1")
		if err != nil {
			t.Fatalf("Create old: %v", err)
		}

		clock.Set(t0.Add(20 * time.Minute))
		fresh, err := m.Create(ctx, "acct-2")
		if err != nil {
			t.Fatalf("Create fresh: %v", err)
		}

		n, err := m.SweepExpired(ctx, t0.Add(31*time.Minute))
		if err != nil {
			t.Fatalf("SweepExpired: %v", err)
		}
		if n != 1 {
			t.Fatalf("swept = %d, want 1", n)
		}

		if err := m.Complete(ctx, old.State); !apperr.Is(err, apperr.InvalidToken) {
			t.Fatalf("swept state: expected InvalidToken, got %v", err)
		}
		clock.Set(t0.Add(31 * time.Minute))
		if _, err := m.Validate(ctx, fresh.State); err != nil {
			t.Fatalf("fresh state must survive sweep: %v", err)
		}
	})

	t.Run("concurrent creates leave one pending session", func(t *testing.T) {
		m, _, _ := newManager(t)
		ctx := context.Background()

		const n = 8
		states := make([]string, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sess, err := m.Create(ctx, "acct-race")
				if err != nil {
					t.Errorf("Create #%d: %v", i, err)
					return
				}
				states[i] = sess.State
			}()
		}
		wg.Wait()
		if t.Failed() {
			return
		}

		pending := 0
		for _, st := range states {
			if _, err := m.Validate(ctx, st); err == nil {
				pending++
			} else if !apperr.Is(err, apperr.InvalidToken) {
				t.Fatalf("Validate: expected InvalidToken for superseded state, got %v", err)
			}
		}
		if pending != 1 {
			t.Fatalf("pending sessions = %d, want 1", pending)
		}
	})

	t.Run("store refuses a second pending row for an account", func(t *testing.T) {
		_, _, store := newManager(t)
		ctx := context.Background()

		first := Session{ID: uuid.NewString(), State: uuid.NewString(), AccountID: "acct-dup", ExpiresAt: t0.Add(time.Hour), CreatedAt: t0}
		if err := store.Insert(ctx, first); err != nil {
			t.Fatalf("Insert first: %v", err)
		}
		second := Session{ID: uuid.NewString(), State: uuid.NewString(), AccountID: "acct-dup", ExpiresAt: t0.Add(time.Hour), CreatedAt: t0}
		if err := store.Insert(ctx, second); err == nil {
			t.Fatalf("second pending insert must fail")
		}

		if _, err := store.CompleteByState(ctx, first.State, t0); err != nil {
			t.Fatalf("CompleteByState: %v", err)
		}
		if err := store.Insert(ctx, second); err != nil {
			t.Fatalf("insert after completion: %v", err)
		}
	})

	t.Run("create rejects empty account", func(t *testing.T) {
		m, _, _ := newManager(t)
		if _, err := m.Create(context.Background(), " "); !apperr.Is(err, apperr.InvalidInput) {
			t.Fatalf("expected InvalidInput, got %v", err)
		}
	})
}
