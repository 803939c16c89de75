package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// PostgresStore implements Store over onecar.session_token_pairs.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed pair store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const pgPairColumns = `id, account_id, access_token_hash, refresh_token_hash,
	access_expires_at, refresh_expires_at, created_at, revoked_at`

func pgPairs() string { return storage.PgIdent("session_token_pairs") }

func (s *PostgresStore) Insert(ctx context.Context, p Pair) error {
	_, err := storage.PgConn(ctx, s.pool).Exec(ctx, `
		INSERT INTO `+pgPairs()+` (`+pgPairColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
	`, p.ID, p.AccountID, p.AccessHash, p.RefreshHash, p.AccessExpiresAt, p.RefreshExpiresAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("session.Insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindLiveByAccessHash(ctx context.Context, hash string) (Pair, error) {
	return s.findLive(ctx, `access_token_hash = $1`, hash, false)
}

// FindLiveByRefreshHash locks the row (FOR UPDATE) so concurrent refreshes
// of the same token serialize inside their transactions.
func (s *PostgresStore) FindLiveByRefreshHash(ctx context.Context, hash string) (Pair, error) {
	return s.findLive(ctx, `refresh_token_hash = $1`, hash, true)
}

func (s *PostgresStore) findLive(ctx context.Context, where, hash string, lock bool) (Pair, error) {
	q := `SELECT ` + pgPairColumns + ` FROM ` + pgPairs() + ` WHERE ` + where + ` AND revoked_at IS NULL`
	if lock {
		q += ` FOR UPDATE`
	}

	var p Pair
	err := storage.PgConn(ctx, s.pool).QueryRow(ctx, q, hash).Scan(
		&p.ID,
		&p.AccountID,
		&p.AccessHash,
		&p.RefreshHash,
		&p.AccessExpiresAt,
		&p.RefreshExpiresAt,
		&p.CreatedAt,
		&p.RevokedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Pair{}, ErrPairNotFound
	}
	if err != nil {
		return Pair{}, fmt.Errorf("session.findLive: %w", err)
	}

	p.AccessExpiresAt = p.AccessExpiresAt.UTC()
	p.RefreshExpiresAt = p.RefreshExpiresAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, id string, now time.Time) (bool, error) {
	ct, err := storage.PgConn(ctx, s.pool).Exec(ctx, `
		UPDATE `+pgPairs()+`
		   SET revoked_at = $2
		 WHERE id = $1 AND revoked_at IS NULL
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("session.Revoke: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PostgresStore) RevokeAllForAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	ct, err := storage.PgConn(ctx, s.pool).Exec(ctx, `
		UPDATE `+pgPairs()+`
		   SET revoked_at = $2
		 WHERE account_id = $1 AND revoked_at IS NULL
	`, accountID, now)
	if err != nil {
		return 0, fmt.Errorf("session.RevokeAllForAccount: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := storage.PgConn(ctx, s.pool).Exec(ctx, `
		DELETE FROM `+pgPairs()+` WHERE refresh_expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("session.DeleteExpired: %w", err)
	}
	return ct.RowsAffected(), nil
}
