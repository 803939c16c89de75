package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/identity/ids"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/storage"
)

// SQLiteStore implements Store over the embedded SQLite backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore constructs a SQLiteStore. The caller owns db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, in NewAccount) (Account, error) {
	const op = "identity.CreateAccount"

	in, err := prepareNew(op, in)
	if err != nil {
		return Account{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Account{}, err
	}

	now := storage.ToMillis(in.Now)
	_, err = storage.SQLConn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO accounts (
		     id, handle, handle_norm, password_hash, name, email, email_norm, phone, role, active, created_at, updated_at
		   ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		id, in.Handle, NormalizeHandle(in.Handle), in.PasswordHash, in.Name,
		in.Email, NormalizeEmail(in.Email), in.Phone, string(in.Role), now, now,
	)
	if err != nil {
		if col, ok := storage.IsSQLiteUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: classifyColumn(col)}
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
		CreatedAt:    storage.FromMillis(now),
		UpdatedAt:    storage.FromMillis(now),
	}, nil
}

func (s *SQLiteStore) GetByHandle(ctx context.Context, handle string) (Account, error) {
	return s.getOne(ctx, "identity.GetByHandle", `handle_norm = ?`, NormalizeHandle(handle))
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (Account, error) {
	return s.getOne(ctx, "identity.GetByID", `id = ?`, strings.TrimSpace(id))
}

func (s *SQLiteStore) getOne(ctx context.Context, op, where, arg string) (Account, error) {
	if arg == "" {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}

	var (
		a                  Account
		role               string
		active             int
		created, updatedAt int64
	)
	err := storage.SQLConn(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, handle, password_hash, name, email, phone, role, active, created_at, updated_at
		   FROM accounts WHERE `+where,
		arg,
	).Scan(&a.ID, &a.Handle, &a.PasswordHash, &a.Name, &a.Email, &a.Phone, &role, &active, &created, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}

	a.Role = Role(role)
	a.Active = active != 0
	a.CreatedAt = storage.FromMillis(created)
	a.UpdatedAt = storage.FromMillis(updatedAt)
	return a, nil
}

func (s *SQLiteStore) HandleExists(ctx context.Context, handle string) (bool, error) {
	return s.exists(ctx, `handle_norm = ?`, NormalizeHandle(handle))
}

func (s *SQLiteStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `email_norm = ?`, NormalizeEmail(email))
}

func (s *SQLiteStore) PhoneExists(ctx context.Context, phone string) (bool, error) {
	return s.exists(ctx, `phone = ?`, strings.TrimSpace(phone))
}

func (s *SQLiteStore) exists(ctx context.Context, where, arg string) (bool, error) {
	var n int
	err := storage.SQLConn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE `+where+`)`,
		arg,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("identity.exists: %w", err)
	}
	return n != 0, nil
}

func (s *SQLiteStore) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	const op = "identity.SetActive"

	if now.IsZero() {
		now = time.Now().UTC()
	}
	flag := 0
	if active {
		flag = 1
	}

	res, err := storage.SQLConn(ctx, s.db).ExecContext(ctx,
		`UPDATE accounts SET active = ?, updated_at = ? WHERE id = ?`,
		flag, storage.ToMillis(now), strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}
	return nil
}
