// Package dbx provides the minimal DB interface shared by repositories.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by our repos.
// *sql.DB, *sql.Conn, and *sql.Tx all satisfy this interface, so a
// repository works the same against the pool, a bound connection, or an
// open transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
