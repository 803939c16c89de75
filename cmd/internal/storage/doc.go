// Package storage owns database plumbing shared by every store: connection
// setup for Postgres (pgx) and SQLite (modernc), embedded schema migrations,
// and a context-carried transaction manager.
//
// Stores never begin transactions themselves. A service wraps a multi-step
// mutation in TxManager.WithinTx, and each store method picks up the active
// transaction from the context through PgConn or SQLConn.
package storage
