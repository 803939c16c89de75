package storage

import "context"

// TxManager runs fn inside a single database transaction.
//
// The transaction is carried by the context passed to fn. Calling WithinTx
// again with that context joins the outer transaction instead of nesting.
// The transaction commits when fn returns nil and rolls back otherwise.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
