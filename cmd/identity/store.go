package identity

import (
	"context"
	"strings"
	"time"
)

// Store is the account persistence boundary.
//
// Every method joins the transaction carried by ctx when there is one, so a
// caller can run an existence check, an insert and a re-read atomically.
type Store interface {
	// CreateAccount inserts a new active account. Uniqueness violations
	// return ConflictError naming FieldHandle, FieldEmail or FieldPhone.
	CreateAccount(ctx context.Context, in NewAccount) (Account, error)

	// GetByHandle looks up by handle, case-insensitively.
	GetByHandle(ctx context.Context, handle string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)

	HandleExists(ctx context.Context, handle string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)

	// SetActive flips the activation flag. Accounts are never deleted.
	SetActive(ctx context.Context, id string, active bool, now time.Time) error
}

func prepareNew(op string, in NewAccount) (NewAccount, error) {
	in.Handle = strings.TrimSpace(in.Handle)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Name = strings.TrimSpace(in.Name)

	switch {
	case in.Handle == "":
		return in, invalid(op, FieldHandle)
	case in.Email == "":
		return in, invalid(op, FieldEmail)
	case in.Phone == "":
		return in, invalid(op, FieldPhone)
	case in.PasswordHash == "":
		return in, invalid(op, FieldPassword)
	}

	if in.Role == "" {
		in.Role = RoleUser
	}
	if !in.Role.Valid() {
		return in, invalid(op, "role")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}
