// Package common defines shared constants and sentinel errors used across
// client and server layers of FinKeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrMappingConflict is returned when a local id is already mapped to a
	// different server id (or the server id is bound to another local id).
	ErrMappingConflict = errors.New("id mapping conflict")

	// ErrInvalidOrder is returned by reorder operations that do not receive
	// a permutation of the records in scope.
	ErrInvalidOrder = errors.New("invalid order")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors.
	ErrValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
