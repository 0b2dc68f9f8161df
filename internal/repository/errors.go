package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotPending is returned by conditional invitation transitions when
	// the row exists but is no longer in the pending state.
	ErrNotPending = errors.New("invitation is not pending")

	// ErrDuplicatePendingInvitation maps the partial unique index on
	// pending invitation emails.
	ErrDuplicatePendingInvitation = errors.New("a pending invitation already exists for this email")

	// ErrDuplicateEmail maps unique email violations on the identity tables.
	ErrDuplicateEmail = errors.New("an account already exists for this email")
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint
// failure, optionally on a specific constraint. The store constraint is the
// source of truth for uniqueness; application pre-checks are optimizations.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
