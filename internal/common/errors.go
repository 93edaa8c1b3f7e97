// Package common defines sentinel errors shared across the service layers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorConflict     = errors.New("conflict")
	ErrorValidation   = errors.New("validation error")

	// Auth errors. Invalid signature, expired token, wrong type, and a
	// missing store row all collapse into ErrInvalidToken.
	ErrInvalidToken = errors.New("invalid token")
)
