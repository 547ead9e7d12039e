// Package tx carries transactional boundaries across store calls.
//
// SQL-backed stores pick the *sql.Tx out of the context when present and fall
// back to their pooled handle otherwise, so the same store code runs inside
// and outside a transaction.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// Runner executes fn inside a transactional boundary. Implementations wrap a
// database transaction or, in-memory, a coarse lock with snapshot rollback.
// If fn returns an error nothing it wrote is visible afterwards.
type Runner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
