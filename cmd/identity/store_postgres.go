package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hana-Open-Banking/one-car/cmd/identity/ids"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// PostgresStore implements Store over PostgreSQL.
// The pgx pool is owned by the caller; the store never closes it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const pgAccountColumns = `id, handle, password_hash, name, email, phone, role, active, created_at, updated_at`

func (s *PostgresStore) accounts() string { return storage.PgIdent("accounts") }

func (s *PostgresStore) CreateAccount(ctx context.Context, in NewAccount) (Account, error) {
	const op = "identity.CreateAccount"

	in, err := prepareNew(op, in)
	if err != nil {
		return Account{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Account{}, err
	}

	_, err = storage.PgConn(ctx, s.pool).Exec(ctx,
		`INSERT INTO `+s.accounts()+` (
		     id, handle, handle_norm, password_hash, name, email, email_norm, phone, role, active, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, $10)`,
		id, in.Handle, NormalizeHandle(in.Handle), in.PasswordHash, in.Name,
		in.Email, NormalizeEmail(in.Email), in.Phone, string(in.Role), in.Now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return Account{
		ID:           id,
		Handle:       in.Handle,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         in.Role,
		Active:       true,
		CreatedAt:    in.Now,
		UpdatedAt:    in.Now,
	}, nil
}

func (s *PostgresStore) GetByHandle(ctx context.Context, handle string) (Account, error) {
	return s.getOne(ctx, "identity.GetByHandle", `handle_norm = $1`, NormalizeHandle(handle))
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Account, error) {
	return s.getOne(ctx, "identity.GetByID", `id = $1`, strings.TrimSpace(id))
}

func (s *PostgresStore) getOne(ctx context.Context, op, where string, arg string) (Account, error) {
	if arg == "" {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}

	var (
		a    Account
		role string
	)
	err := storage.PgConn(ctx, s.pool).QueryRow(ctx,
		`SELECT `+pgAccountColumns+` FROM `+s.accounts()+` WHERE `+where,
		arg,
	).Scan(&a.ID, &a.Handle, &a.PasswordHash, &a.Name, &a.Email, &a.Phone, &role, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}
	a.Role = Role(role)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (s *PostgresStore) HandleExists(ctx context.Context, handle string) (bool, error) {
	return s.exists(ctx, `handle_norm = $1`, NormalizeHandle(handle))
}

func (s *PostgresStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `email_norm = $1`, NormalizeEmail(email))
}

func (s *PostgresStore) PhoneExists(ctx context.Context, phone string) (bool, error) {
	return s.exists(ctx, `phone = $1`, strings.TrimSpace(phone))
}

func (s *PostgresStore) exists(ctx context.Context, where, arg string) (bool, error) {
	var ok bool
	err := storage.PgConn(ctx, s.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+s.accounts()+` WHERE `+where+`)`,
		arg,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("identity.exists: %w", err)
	}
	return ok, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	const op = "identity.SetActive"

	if now.IsZero() {
		now = time.Now().UTC()
	}

	ct, err := storage.PgConn(ctx, s.pool).Exec(ctx,
		`UPDATE `+s.accounts()+` SET active = $2, updated_at = $3 WHERE id = $1`,
		strings.TrimSpace(id), active, now,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}
	return nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	switch c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName)); c {
	case "uq_accounts_handle_norm":
		return FieldHandle, true
	case "uq_accounts_email_norm":
		return FieldEmail, true
	case "uq_accounts_phone":
		return FieldPhone, true
	default:
		return classifyColumn(c), true
	}
}

// classifyColumn maps a constraint or column name to a logical field.
func classifyColumn(name string) string {
	switch {
	case strings.Contains(name, "handle"):
		return FieldHandle
	case strings.Contains(name, "email"):
		return FieldEmail
	case strings.Contains(name, "phone"):
		return FieldPhone
	default:
		return "unique"
	}
}
