// Package users declares the persistence contract for the user directory.
package users

import (
	"context"

	"github.com/cghughes/authd/internal/server/models"
)

// Repository defines the user directory's storage operations. All methods
// run through the DBTX resolved for the current request, so they
// participate in the request's open transaction.
type Repository interface {
	// Create inserts the user and fills in its store-assigned id.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID returns the user or common.ErrorNotFound.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByEmail returns the user or common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Query returns users whose email matches the LIKE pattern,
	// skipping offset rows and returning at most limit.
	Query(ctx context.Context, emailPattern string, offset, limit int) ([]*models.User, error)

	// EmailTaken reports whether another live user (excluding excludeID
	// when positive) already owns email.
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)

	// Update overwrites the user row. When withPassword is false the
	// stored credential is left untouched. Returns the affected row count.
	Update(ctx context.Context, user *models.User, withPassword bool) (int64, error)

	// DeleteByID removes the user, returning the affected row count.
	DeleteByID(ctx context.Context, id int64) (int64, error)
}
