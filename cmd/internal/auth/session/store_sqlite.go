package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// SQLiteStore implements Store over the embedded SQLite backend. The single
// connection serializes transactions, so no row lock is needed.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed pair store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Insert(ctx context.Context, p Pair) error {
	_, err := storage.SQLConn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO session_token_pairs (
			id, account_id, access_token_hash, refresh_token_hash,
			access_expires_at, refresh_expires_at, created_at, revoked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
	`, p.ID, p.AccountID, p.AccessHash, p.RefreshHash,
		storage.ToMillis(p.AccessExpiresAt), storage.ToMillis(p.RefreshExpiresAt), storage.ToMillis(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("session.Insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindLiveByAccessHash(ctx context.Context, hash string) (Pair, error) {
	return s.findLive(ctx, `access_token_hash = ?`, hash)
}

func (s *SQLiteStore) FindLiveByRefreshHash(ctx context.Context, hash string) (Pair, error) {
	return s.findLive(ctx, `refresh_token_hash = ?`, hash)
}

func (s *SQLiteStore) findLive(ctx context.Context, where, hash string) (Pair, error) {
	var (
		p                        Pair
		accessExp, refreshExp, c int64
	)
	err := storage.SQLConn(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, account_id, access_token_hash, refresh_token_hash,
		       access_expires_at, refresh_expires_at, created_at
		  FROM session_token_pairs
		 WHERE `+where+` AND revoked_at IS NULL
	`, hash).Scan(&p.ID, &p.AccountID, &p.AccessHash, &p.RefreshHash, &accessExp, &refreshExp, &c)
	if errors.Is(err, sql.ErrNoRows) {
		return Pair{}, ErrPairNotFound
	}
	if err != nil {
		return Pair{}, fmt.Errorf("session.findLive: %w", err)
	}

	p.AccessExpiresAt = storage.FromMillis(accessExp)
	p.RefreshExpiresAt = storage.FromMillis(refreshExp)
	p.CreatedAt = storage.FromMillis(c)
	return p, nil
}

func (s *SQLiteStore) Revoke(ctx context.Context, id string, now time.Time) (bool, error) {
	n, err := s.exec(ctx, "session.Revoke",
		`UPDATE session_token_pairs SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		storage.ToMillis(now), id)
	return n == 1, err
}

func (s *SQLiteStore) RevokeAllForAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	return s.exec(ctx, "session.RevokeAllForAccount",
		`UPDATE session_token_pairs SET revoked_at = ? WHERE account_id = ? AND revoked_at IS NULL`,
		storage.ToMillis(now), accountID)
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.exec(ctx, "session.DeleteExpired",
		`DELETE FROM session_token_pairs WHERE refresh_expires_at < ?`,
		storage.ToMillis(cutoff))
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
