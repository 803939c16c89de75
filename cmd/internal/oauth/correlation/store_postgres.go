package correlation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// PostgresStore implements Store over onecar.oauth_correlation_sessions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func pgSessions() string { return storage.PgIdent("oauth_correlation_sessions") }

func (s *PostgresStore) Insert(ctx context.Context, sess Session) error {
	_, err := storage.PgConn(ctx, s.pool).Exec(ctx, `
		INSERT INTO `+pgSessions()+` (session_id, state, account_id, expires_at, completed, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
	`, sess.ID, sess.State, sess.AccountID, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("correlation.Insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByState(ctx context.Context, state string) (Session, error) {
	var sess Session
	err := storage.PgConn(ctx, s.pool).QueryRow(ctx, `
		SELECT session_id, state, account_id, expires_at, completed, created_at, completed_at
		  FROM `+pgSessions()+`
		 WHERE state = $1
	`, state).Scan(
		&sess.ID,
		&sess.State,
		&sess.AccountID,
		&sess.ExpiresAt,
		&sess.Completed,
		&sess.CreatedAt,
		&sess.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("correlation.FindByState: %w", err)
	}

	sess.ExpiresAt = sess.ExpiresAt.UTC()
	sess.CreatedAt = sess.CreatedAt.UTC()
	if sess.CompletedAt != nil {
		t := sess.CompletedAt.UTC()
		sess.CompletedAt = &t
	}
	return sess, nil
}

// CompletePendingForAccount takes a transaction-scoped advisory lock on the
// account first, so concurrent creates for one account run one after another
// and each sees the session committed by the previous one. It must run inside
// a transaction.
func (s *PostgresStore) CompletePendingForAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	conn := storage.PgConn(ctx, s.pool)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('oauth_correlation:' || $1, 0))`, accountID); err != nil {
		return 0, fmt.Errorf("correlation.CompletePendingForAccount: lock: %w", err)
	}

	ct, err := conn.Exec(ctx, `
		UPDATE `+pgSessions()+`
		   SET completed = TRUE, completed_at = $2
		 WHERE account_id = $1 AND completed = FALSE
	`, accountID, now)
	if err != nil {
		return 0, fmt.Errorf("correlation.CompletePendingForAccount: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresStore) CompleteByState(ctx context.Context, state string, now time.Time) (bool, error) {
	ct, err := storage.PgConn(ctx, s.pool).Exec(ctx, `
		UPDATE `+pgSessions()+`
		   SET completed = TRUE, completed_at = $2
		 WHERE state = $1 AND completed = FALSE
	`, state, now)
	if err != nil {
		return false, fmt.Errorf("correlation.CompleteByState: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PostgresStore) CompleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := storage.PgConn(ctx, s.pool).Exec(ctx, `
		UPDATE `+pgSessions()+`
		   SET completed = TRUE, completed_at = $1
		 WHERE completed = FALSE AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("correlation.CompleteExpired: %w", err)
	}
	return ct.RowsAffected(), nil
}
