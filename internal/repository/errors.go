// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values let higher layers distinguish
// between failure scenarios without inspecting driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row, or when an update
// or delete filtered by owner affects no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique constraint,
// e.g. two signups racing on the same username.
var ErrDuplicate = errors.New("duplicate")

// ErrOwnerMissing is returned when a pipeline insert references a user row
// that no longer exists.
var ErrOwnerMissing = errors.New("owner does not exist")
