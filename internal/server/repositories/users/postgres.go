package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cghughes/authd/internal/common"
	"github.com/cghughes/authd/internal/dbx"
	"github.com/cghughes/authd/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (display_name, email, password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		user.DisplayName, user.Email, user.Password, user.Role).Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, display_name, email, password, role
		FROM users
		WHERE id = $1
	`
	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, display_name, email, password, role
		FROM users
		WHERE email = $1
	`
	return scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) Query(ctx context.Context, emailPattern string, offset, limit int) ([]*models.User, error) {
	query := `
		SELECT id, display_name, email, password, role
		FROM users
		WHERE email LIKE $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, emailPattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &user.Password, &user.Role); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var row *sql.Row
	if excludeID > 0 {
		row = r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1 AND id != $2`, email, excludeID)
	} else {
		row = r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email)
	}

	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User, withPassword bool) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if withPassword {
		query := `
			UPDATE users
			SET display_name = $1, email = $2, password = $3, role = $4
			WHERE id = $5
		`
		res, err = r.db.ExecContext(ctx, query,
			user.DisplayName, user.Email, user.Password, user.Role, user.ID)
	} else {
		query := `
			UPDATE users
			SET display_name = $1, email = $2, role = $3
			WHERE id = $4
		`
		res, err = r.db.ExecContext(ctx, query,
			user.DisplayName, user.Email, user.Role, user.ID)
	}
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

func scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.Password, &user.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
