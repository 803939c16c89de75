package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hana-Open-Banking/one-car/cmd/identity"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/auth/session"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/correlation"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/linking"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// backend bundles the stores of one storage engine.
type backend struct {
	name string

	accounts     identity.Store
	pairs        session.Store
	correlations correlation.Store
	credentials  linking.Store
	tx           storage.TxManager

	ping  func(ctx context.Context) error
	close func()
}

// openBackend selects Postgres when a database URL is set and the embedded
// SQLite file otherwise. Both run migrations before returning.
func openBackend(ctx context.Context, cfg ServerConfig, log *slog.Logger) (*backend, error) {
	if cfg.DatabaseURL != "" {
		return openPostgresBackend(ctx, cfg, log)
	}
	return openSQLiteBackend(ctx, cfg, log)
}

func openPostgresBackend(ctx context.Context, cfg ServerConfig, log *slog.Logger) (*backend, error) {
	if err := storage.MigratePostgres(cfg.DatabaseURL); err != nil {
		return nil, err
	}
	pool, err := storage.OpenPostgres(ctx, cfg.DatabaseURL, storage.PostgresOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, err
	}

	accounts, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("db.enabled", "engine", "postgres")
	return &backend{
		name:         "postgres",
		accounts:     accounts,
		pairs:        session.NewPostgresStore(pool),
		correlations: correlation.NewPostgresStore(pool),
		credentials:  linking.NewPostgresStore(pool),
		tx:           storage.NewPgTxManager(pool),
		ping:         pgPinger(pool),
		close:        pool.Close,
	}, nil
}

func openSQLiteBackend(ctx context.Context, cfg ServerConfig, log *slog.Logger) (*backend, error) {
	db, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	accounts, err := identity.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("db.enabled", "engine", "sqlite", "path", cfg.SQLitePath)
	return &backend{
		name:         "sqlite",
		accounts:     accounts,
		pairs:        session.NewSQLiteStore(db),
		correlations: correlation.NewSQLiteStore(db),
		credentials:  linking.NewSQLiteStore(db),
		tx:           storage.NewSQLTxManager(db),
		ping:         sqlPinger(db),
		close:        func() { _ = db.Close() },
	}, nil
}

func pgPinger(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		return storage.PingPostgres(ctx, pool, 2*time.Second)
	}
}

func sqlPinger(db *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
}
