package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgSchema is the Postgres schema created by the migrations.
const PgSchema = "onecar"

// PgIdent quotes a table inside PgSchema.
func PgIdent(name string) string {
	return pgx.Identifier{PgSchema, name}.Sanitize()
}

// PgQuerier is the subset of pgxpool.Pool and pgx.Tx used by stores.
type PgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTxKey struct{}

// PostgresOptions tunes the pgx pool.
type PostgresOptions struct {
	MaxConns int32
	MinConns int32
}

// OpenPostgres builds a pgxpool and validates connectivity.
// It does not run migrations; see MigratePostgres.
func OpenPostgres(ctx context.Context, databaseURL string, opts PostgresOptions) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns >= 0 {
		pcfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingPostgres(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingPostgres checks if a connection can be acquired within timeout.
func PingPostgres(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// PgConn returns the transaction carried by ctx, or pool when there is none.
func PgConn(ctx context.Context, pool *pgxpool.Pool) PgQuerier {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok && tx != nil {
		return tx
	}
	return pool
}

// PgTxManager implements TxManager over a pgx pool.
type PgTxManager struct {
	pool *pgxpool.Pool
}

// NewPgTxManager returns a TxManager for pool.
func NewPgTxManager(pool *pgxpool.Pool) *PgTxManager {
	return &PgTxManager{pool: pool}
}

// WithinTx runs fn in a ReadCommitted read-write transaction.
func (m *PgTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok && tx != nil {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
