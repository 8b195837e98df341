package guidance

import (
	"errors"
	"fmt"

	"livenav/internal/types"
)

var (
	ErrNotFound   = errors.New("route not found")
	ErrValidation = errors.New("validation failed")
)

// NotFoundError reports an unknown route id. It matches ErrNotFound.
type NotFoundError struct {
	ID types.ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("route %q not found", string(e.ID))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a malformed request. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
