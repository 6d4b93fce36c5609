package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the caller lost a race for a copy row; the assignment
	// search is retried once before the reservation stays queued.
	ErrConflict = errors.New("concurrency conflict")
	ErrUserName = errors.New("username is required")
)

// ValidationError reports malformed input. Nothing was mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PreconditionError reports an operation applied to an entity in the wrong
// state, with the specific refusal reason. Nothing was mutated.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

func Precondition(format string, args ...any) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

type ValidationErrorResponse struct {
	Message string `json:"message"`
}
