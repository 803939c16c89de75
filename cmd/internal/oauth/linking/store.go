package linking

import (
	"context"
	"errors"
	"time"
)

// ErrCredentialNotFound is returned when an account has no stored credential.
var ErrCredentialNotFound = errors.New("external credential not found")

// Credential is the provider token held for one account.
type Credential struct {
	AccountID    string
	SubjectID    string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int64
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store persists at most one credential per account. Methods join the
// transaction carried by ctx.
type Store interface {
	// Replace deletes any credential of c.AccountID and inserts c. Callers run
	// it inside a transaction.
	Replace(ctx context.Context, c Credential) error
	Get(ctx context.Context, accountID string) (Credential, error)
	Delete(ctx context.Context, accountID string) (bool, error)
}
