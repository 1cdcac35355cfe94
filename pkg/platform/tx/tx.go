// Package tx carries transactions through context.
//
// Stores never open transactions themselves. A Runner opens one, places it in the
// context, and every store method called with that context joins it. Calling
// RunInTx with a context that already carries a transaction reuses it.
package tx

import (
	"context"
	"database/sql"
)

// Runner executes fn inside a single transaction. A non-nil error from fn rolls back.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ctxKey struct{}

var txKey = ctxKey{}

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
