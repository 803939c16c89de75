package linking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// PostgresStore implements Store over onecar.external_credentials.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func pgCredentials() string { return storage.PgIdent("external_credentials") }

func (s *PostgresStore) Replace(ctx context.Context, c Credential) error {
	q := storage.PgConn(ctx, s.pool)

	if _, err := q.Exec(ctx, `DELETE FROM `+pgCredentials()+` WHERE account_id = $1`, c.AccountID); err != nil {
		return fmt.Errorf("linking.Replace: delete: %w", err)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO `+pgCredentials()+` (
			account_id, subject_id, access_token, refresh_token, token_type,
			scope, expires_in, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.AccountID, c.SubjectID, c.AccessToken, c.RefreshToken, c.TokenType,
		c.Scope, c.ExpiresIn, c.ExpiresAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("linking.Replace: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, accountID string) (Credential, error) {
	var c Credential
	err := storage.PgConn(ctx, s.pool).QueryRow(ctx, `
		SELECT account_id, subject_id, access_token, refresh_token, token_type,
		       scope, expires_in, expires_at, created_at, updated_at
		  FROM `+pgCredentials()+`
		 WHERE account_id = $1
	`, accountID).Scan(
		&c.AccountID,
		&c.SubjectID,
		&c.AccessToken,
		&c.RefreshToken,
		&c.TokenType,
		&c.Scope,
		&c.ExpiresIn,
		&c.ExpiresAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrCredentialNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("linking.Get: %w", err)
	}

	c.ExpiresAt = c.ExpiresAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (s *PostgresStore) Delete(ctx context.Context, accountID string) (bool, error) {
	ct, err := storage.PgConn(ctx, s.pool).Exec(ctx,
		`DELETE FROM `+pgCredentials()+` WHERE account_id = $1`, accountID)
	if err != nil {
		return false, fmt.Errorf("linking.Delete: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
