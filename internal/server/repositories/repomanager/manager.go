// Package repomanager provides the factory that binds repositories to a
// DBTX, letting services run the same repository code against the pool, a
// request-bound connection, or an open transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/cghughes/authd/internal/dbx"
	"github.com/cghughes/authd/internal/server/repositories/tokens"
	"github.com/cghughes/authd/internal/server/repositories/users"
)

// RepositoryManager creates repositories over the given DBTX and applies
// schema migrations.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Tokens(db dbx.DBTX) tokens.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
