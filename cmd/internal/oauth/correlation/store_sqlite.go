package correlation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// SQLiteStore implements Store over the embedded SQLite backend.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Insert(ctx context.Context, sess Session) error {
	_, err := storage.SQLConn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO oauth_correlation_sessions (session_id, state, account_id, expires_at, completed, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, sess.ID, sess.State, sess.AccountID, storage.ToMillis(sess.ExpiresAt), storage.ToMillis(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("correlation.Insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindByState(ctx context.Context, state string) (Session, error) {
	var (
		sess       Session
		exp, c     int64
		completed  int64
		finishedAt sql.NullInt64
	)
	err := storage.SQLConn(ctx, s.db).QueryRowContext(ctx, `
		SELECT session_id, state, account_id, expires_at, completed, created_at, completed_at
		  FROM oauth_correlation_sessions
		 WHERE state = ?
	`, state).Scan(&sess.ID, &sess.State, &sess.AccountID, &exp, &completed, &c, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("correlation.FindByState: %w", err)
	}

	sess.ExpiresAt = storage.FromMillis(exp)
	sess.CreatedAt = storage.FromMillis(c)
	sess.Completed = completed != 0
	if finishedAt.Valid {
		t := storage.FromMillis(finishedAt.Int64)
		sess.CompletedAt = &t
	}
	return sess, nil
}

func (s *SQLiteStore) CompletePendingForAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	return s.exec(ctx, "correlation.CompletePendingForAccount",
		`UPDATE oauth_correlation_sessions SET completed = 1, completed_at = ? WHERE account_id = ? AND completed = 0`,
		storage.ToMillis(now), accountID)
}

func (s *SQLiteStore) CompleteByState(ctx context.Context, state string, now time.Time) (bool, error) {
	n, err := s.exec(ctx, "correlation.CompleteByState",
		`UPDATE oauth_correlation_sessions SET completed = 1, completed_at = ? WHERE state = ? AND completed = 0`,
		storage.ToMillis(now), state)
	return n == 1, err
}

func (s *SQLiteStore) CompleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ms := storage.ToMillis(now)
	return s.exec(ctx, "correlation.CompleteExpired",
		`UPDATE oauth_correlation_sessions SET completed = 1, completed_at = ? WHERE completed = 0 AND expires_at <= ?`,
		ms, ms)
}

func (s *SQLiteStore) exec(ctx context.Context, op, q string, args ...any) (int64, error) {
	res, err := storage.SQLConn(ctx, s.db).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
