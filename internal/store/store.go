// Package store defines the storage error taxonomy shared by all backends.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the addressed record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means a uniqueness constraint rejected the write.
	ErrConflict = errors.New("store: conflict")
	// ErrUnavailable means the backing store could not be reached.
	ErrUnavailable = errors.New("store: unavailable")
)

// Constraint names shared by the Postgres schema and the in-memory store.
const (
	ConstraintAccountEmail    = "accounts_email_key"
	ConstraintAdminEmail      = "admins_email_key"
	ConstraintAdminUsername   = "admins_username_key"
	ConstraintInFlightRequest = "permission_requests_in_flight_idx"
)

// ConflictError carries the name of the violated constraint.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: conflict on %s", e.Constraint)
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Conflict returns a ConflictError for constraint.
func Conflict(constraint string) error {
	return &ConflictError{Constraint: constraint}
}

// IsConflictOn reports whether err is a conflict on the named constraint.
func IsConflictOn(err error, constraint string) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Constraint == constraint
}
