package correlation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// maxStateLen bounds presented states; a uuid string is 36 bytes.
const maxStateLen = 64

// Manager owns the pending → completed lifecycle of correlation sessions.
type Manager struct {
	store Store
	tx    storage.TxManager
	ttl   time.Duration
	now   func() time.Time
}

// NewManager returns a Manager. A nil now uses time.Now.
func NewManager(store Store, tx storage.TxManager, cfg Config, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultConfig().SessionTTL
	}
	return &Manager{store: store, tx: tx, ttl: ttl, now: now}
}

// Create supersedes any pending session of accountID and starts a new one.
func (m *Manager) Create(ctx context.Context, accountID string) (Session, error) {
	const op = "correlation.Create"

	if strings.TrimSpace(accountID) == "" {
		return Session{}, apperr.Ef(op, apperr.InvalidInput, "account id is required")
	}

	sid, err := uuid.NewRandom()
	if err != nil {
		return Session{}, apperr.E(op, apperr.Internal, fmt.Errorf("session id: %w", err))
	}
	state, err := uuid.NewRandom()
	if err != nil {
		return Session{}, apperr.E(op, apperr.Internal, fmt.Errorf("state: %w", err))
	}

	now := m.now().UTC()
	sess := Session{
		ID:        sid.String(),
		State:     state.String(),
		AccountID: accountID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}

	err = m.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := m.store.CompletePendingForAccount(ctx, accountID, now); err != nil {
			return err
		}
		return m.store.Insert(ctx, sess)
	})
	if err != nil {
		return Session{}, apperr.E(op, apperr.Internal, err)
	}
	return sess, nil
}

// Validate returns the pending session holding state without changing it.
func (m *Manager) Validate(ctx context.Context, state string) (Session, error) {
	const op = "correlation.Validate"

	sess, err := m.find(ctx, op, state)
	if err != nil {
		return Session{}, err
	}
	if sess.Completed {
		return Session{}, apperr.Ef(op, apperr.InvalidToken, "session already completed")
	}
	if !m.now().Before(sess.ExpiresAt) {
		return Session{}, apperr.Ef(op, apperr.ExpiredToken, "session expired")
	}
	return sess, nil
}

// Complete flips the session holding state from pending to completed.
func (m *Manager) Complete(ctx context.Context, state string) error {
	const op = "correlation.Complete"

	if !presentable(state) {
		return apperr.Ef(op, apperr.InvalidToken, "unknown state")
	}
	changed, err := m.store.CompleteByState(ctx, state, m.now().UTC())
	if err != nil {
		return apperr.E(op, apperr.Internal, err)
	}
	if !changed {
		return apperr.Ef(op, apperr.InvalidToken, "session missing or already completed")
	}
	return nil
}

// SweepExpired completes every pending session expired at now.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := m.store.CompleteExpired(ctx, now.UTC())
	if err != nil {
		return 0, apperr.E("correlation.SweepExpired", apperr.Internal, err)
	}
	return n, nil
}

func (m *Manager) find(ctx context.Context, op, state string) (Session, error) {
	if !presentable(state) {
		return Session{}, apperr.Ef(op, apperr.InvalidToken, "unknown state")
	}
	sess, err := m.store.FindByState(ctx, state)
	if errors.Is(err, ErrNotFound) {
		return Session{}, apperr.E(op, apperr.InvalidToken, err)
	}
	if err != nil {
		return Session{}, apperr.E(op, apperr.Internal, err)
	}
	return sess, nil
}

func presentable(state string) bool {
	return state != "" && len(state) <= maxStateLen
}
