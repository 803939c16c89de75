// Package storagetest opens migrated databases for package tests.
//
// SQLite databases live in t.TempDir(). Postgres tests are opt-in through
// ONECAR_DATABASE_URL; outside CI an unreachable server skips the test.
package storagetest

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// DatabaseURLEnv gates Postgres integration tests.
const DatabaseURLEnv = "ONECAR_DATABASE_URL"

// SQLite returns a migrated SQLite database closed at test cleanup.
func SQLite(t testing.TB) *sql.DB {
	t.Helper()

	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "onecar.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Postgres returns a pool on a migrated database with the given tables
// truncated. It skips when ONECAR_DATABASE_URL is unset, or when Postgres is
// unreachable outside CI.
func Postgres(t testing.TB, truncate ...string) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv(DatabaseURLEnv))
	if raw == "" {
		t.Skipf("integration test skipped: %s is not set", DatabaseURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	pool, err := storage.OpenPostgres(ctx, raw, storage.PostgresOptions{MaxConns: 4})
	if err != nil {
		if ShouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (%s set): %v", DatabaseURLEnv, err)
		}
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := storage.MigratePostgres(raw); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}

	for _, table := range truncate {
		name := storage.PgIdent(table)
		if _, err := pool.Exec(ctx, `TRUNCATE `+name); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}

	return pool
}

// ShouldSkipIntegration reports whether err looks like an unreachable server.
// In CI every failure is fatal.
func ShouldSkipIntegration(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "context deadline exceeded", "timeout", "dial tcp", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
