// Package common defines shared constants and sentinel errors used across
// plaudsync components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an owner-scoped upsert matches zero rows,
	// meaning the idempotency key collided with a row owned by another user.
	ErrConflict = errors.New("conflict")

	// ErrValidation marks invalid transform output (zero duration,
	// too few segments). Nothing is written before it is returned.
	ErrValidation = errors.New("validation failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
