package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLQuerier is the subset of *sql.DB and *sql.Tx used by stores.
type SQLQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTxKey struct{}

func sqliteDSN(path string) string {
	return "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"
}

// OpenSQLite opens a SQLite database file, applies migrations, and returns a
// handle limited to one connection. SQLite has a single writer, so one
// connection serializes every transaction.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if err := MigrateSQLite(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return db, nil
}

// SQLConn returns the transaction carried by ctx, or db when there is none.
func SQLConn(ctx context.Context, db *sql.DB) SQLQuerier {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return db
}

// SQLTxManager implements TxManager over database/sql.
type SQLTxManager struct {
	db *sql.DB
}

// NewSQLTxManager returns a TxManager for db.
func NewSQLTxManager(db *sql.DB) *SQLTxManager {
	return &SQLTxManager{db: db}
}

// WithinTx runs fn in a database/sql transaction.
func (m *SQLTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok && tx != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ToMillis normalizes timestamps to UTC milliseconds for SQLite columns.
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis restores a UTC timestamp stored by ToMillis.
func FromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// IsSQLiteUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure, returning the offending "table.column" when the driver
// message names it.
func IsSQLiteUniqueViolation(err error) (column string, ok bool) {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
	default:
		return "", false
	}

	msg := sqliteErr.Error()
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return "", true
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexAny(rest, " ,)"); j >= 0 {
		rest = rest[:j]
	}
	return rest, true
}
