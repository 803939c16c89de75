package correlation

import (
	"context"
	"time"
)

// Session is one OAuth authorization attempt.
type Session struct {
	ID          string
	State       string
	AccountID   string
	ExpiresAt   time.Time
	Completed   bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Store persists sessions. Methods join the transaction carried by ctx.
type Store interface {
	Insert(ctx context.Context, s Session) error
	FindByState(ctx context.Context, state string) (Session, error)

	// CompletePendingForAccount completes every pending session of accountID.
	CompletePendingForAccount(ctx context.Context, accountID string, now time.Time) (int64, error)

	// CompleteByState completes the pending session holding state and reports
	// whether a row changed.
	CompleteByState(ctx context.Context, state string, now time.Time) (bool, error)

	// CompleteExpired completes pending sessions whose expiry is at or before now.
	CompleteExpired(ctx context.Context, now time.Time) (int64, error)
}
