package settings

import "errors"

// Domain-specific errors for settings operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when no record has been persisted yet.
	ErrNotFound = errors.New("settings: no stored record")

	// ErrLayoutMismatch is returned when the stored table layout does not
	// match the current record. The store resets to defaults in that case.
	ErrLayoutMismatch = errors.New("settings: stored layout does not match")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("settings: invalid record")
)
