package process

import "errors"

// Errors returned by Runner.Run.
var (
	// ErrNotFound is returned when the binary does not exist.
	ErrNotFound = errors.New("process: binary not found")

	// ErrExitStatus is returned when the command exits non-zero.
	ErrExitStatus = errors.New("process: non-zero exit status")

	// ErrCancelled is returned when the context ends before the command.
	ErrCancelled = errors.New("process: cancelled")
)
