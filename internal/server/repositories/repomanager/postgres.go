package repomanager

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/cghughes/authd/internal/dbx"
	"github.com/cghughes/authd/internal/server/migrations"
	"github.com/cghughes/authd/internal/server/repositories/tokens"
	"github.com/cghughes/authd/internal/server/repositories/users"
)

// gooseUpContext is a seam for tests.
var gooseUpContext = goose.UpContext

// PostgresRepositoryManager builds PostgreSQL-backed repositories.
type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Tokens(db dbx.DBTX) tokens.Repository {
	return tokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
