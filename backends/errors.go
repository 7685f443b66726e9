package backends

import "github.com/pkg/errors"

// Error kinds, one per failure class. Backends wrap these with context via
// github.com/pkg/errors, so callers match with errors.Is and still get the
// full message chain. Once a caller orchestrating a pipeline observes any of
// them, it must skip all remaining stages; partial output in a visibility
// buffer after a failed call is undefined.
var (
	// ErrInvalidArgument: nil required buffer, mismatched lengths or
	// precisions, or non-positive counts.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBadLocation: a buffer handle belongs to a different backend (the
	// wrong memory space for the requested execution).
	ErrBadLocation = errors.New("buffer in wrong memory space")

	// ErrExecFailure: the backend failed while running a kernel.
	ErrExecFailure = errors.New("backend execution failure")
)
