// Package db defines the minimal connection abstraction shared by every
// store, so store code works unmodified whether it runs directly against the
// pool or inside a caller-managed transaction.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx. Stores depend on this
// interface, never on a concrete pool type, so a compound operation can open
// a transaction and hand it to the same store code that serves plain reads.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
