package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cghughes/authd/internal/common"
	"github.com/cghughes/authd/internal/dbx"
	"github.com/cghughes/authd/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB, *sql.Conn, or *sql.Tx), so it participates in whatever
// transaction is open for the current request.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.Token) error {
	query := `
		INSERT INTO tokens (value, user_id, expires, type, blacklisted)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		token.Value, token.UserID, token.Expires, token.Type, token.Blacklisted).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, value string, typ models.TokenType, userID int64) (*models.Token, error) {
	query := `
		SELECT id, value, user_id, expires, type, blacklisted
		FROM tokens
		WHERE value = $1 AND type = $2 AND user_id = $3
	`
	token := &models.Token{}
	err := r.db.QueryRowContext(ctx, query, value, typ, userID).
		Scan(&token.ID, &token.Value, &token.UserID, &token.Expires, &token.Type, &token.Blacklisted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) DeleteByValue(ctx context.Context, value string) (int64, error) {
	query := `
		DELETE FROM tokens
		WHERE value = $1 AND blacklisted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, value)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

func (r *PostgresRepository) DeleteByUserAndType(ctx context.Context, userID int64, typ models.TokenType) (int64, error) {
	query := `
		DELETE FROM tokens
		WHERE user_id = $1 AND type = $2 AND blacklisted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, userID, typ)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

func (r *PostgresRepository) Blacklist(ctx context.Context, value string) error {
	query := `
		UPDATE tokens
		SET blacklisted = TRUE
		WHERE value = $1
	`
	res, err := r.db.ExecContext(ctx, query, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected < 1 {
		return common.ErrorNotFound
	}
	return nil
}
