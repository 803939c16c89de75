package linking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// SQLiteStore implements Store over the embedded SQLite backend.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Replace(ctx context.Context, c Credential) error {
	q := storage.SQLConn(ctx, s.db)

	if _, err := q.ExecContext(ctx, `DELETE FROM external_credentials WHERE account_id = ?`, c.AccountID); err != nil {
		return fmt.Errorf("linking.Replace: delete: %w", err)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO external_credentials (
			account_id, subject_id, access_token, refresh_token, token_type,
			scope, expires_in, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.AccountID, c.SubjectID, c.AccessToken, c.RefreshToken, c.TokenType,
		c.Scope, c.ExpiresIn, storage.ToMillis(c.ExpiresAt), storage.ToMillis(c.CreatedAt), storage.ToMillis(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("linking.Replace: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, accountID string) (Credential, error) {
	var (
		c                 Credential
		exp, created, upd int64
	)
	err := storage.SQLConn(ctx, s.db).QueryRowContext(ctx, `
		SELECT account_id, subject_id, access_token, refresh_token, token_type,
		       scope, expires_in, expires_at, created_at, updated_at
		  FROM external_credentials
		 WHERE account_id = ?
	`, accountID).Scan(&c.AccountID, &c.SubjectID, &c.AccessToken, &c.RefreshToken, &c.TokenType,
		&c.Scope, &c.ExpiresIn, &exp, &created, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrCredentialNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("linking.Get: %w", err)
	}

	c.ExpiresAt = storage.FromMillis(exp)
	c.CreatedAt = storage.FromMillis(created)
	c.UpdatedAt = storage.FromMillis(upd)
	return c, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, accountID string) (bool, error) {
	res, err := storage.SQLConn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM external_credentials WHERE account_id = ?`, accountID)
	if err != nil {
		return false, fmt.Errorf("linking.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("linking.Delete: %w", err)
	}
	return n > 0, nil
}
