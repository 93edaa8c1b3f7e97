// Package tokens declares the persistence contract for refresh and
// password-reset tokens. Access tokens are never stored.
package tokens

import (
	"context"

	"github.com/cghughes/authd/internal/server/models"
)

// Repository defines operations for persisting, cross-checking, and
// revoking tokens. Revocation is deletion; the blacklisted flag is a
// query predicate kept as an extension point for audit-style revocation.
type Repository interface {
	// Create persists the token and fills in its store-assigned id.
	Create(ctx context.Context, token *models.Token) error

	// Find returns the row matching (value, type, userID), or
	// common.ErrorNotFound. The row is the authority for liveness: a
	// signed token whose row is gone does not authenticate.
	Find(ctx context.Context, value string, typ models.TokenType, userID int64) (*models.Token, error)

	// DeleteByValue removes the non-blacklisted row with the given value
	// and reports how many rows matched. The conditional delete is a
	// single statement, so of two concurrent callers presenting the same
	// value exactly one observes 1.
	DeleteByValue(ctx context.Context, value string) (int64, error)

	// DeleteByUserAndType removes every non-blacklisted row of one type
	// belonging to userID, reporting the count.
	DeleteByUserAndType(ctx context.Context, userID int64, typ models.TokenType) (int64, error)

	// Blacklist marks a token revoked without deleting it. No workflow
	// calls it; it exists so audit-retention revocation can be wired in
	// without schema changes.
	Blacklist(ctx context.Context, value string) error
}
