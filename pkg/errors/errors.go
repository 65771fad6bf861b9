// Package errors provides common error types for ottermatch adapters.
//
// The matching engine never fails: an unmatched event is a normal result.
// The adapters around it (listing parser, file indexer, run stores, event
// publisher, recorder API client) do fail, and return errors that wrap the
// sentinels below so callers can branch with errors.Is.
//
// Usage:
//
//	import omerrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
//
//	return nil, fmt.Errorf("run %s: %w", id, omerrors.ErrNotFound)
//
//	if omerrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., a locked output file).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates invalid input or configuration.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized indicates missing or rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether any error in err's chain is ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnauthorized reports whether any error in err's chain is ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
