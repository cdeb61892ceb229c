package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrValidation is the umbrella for every error that rejects a mutation.
	// Use errors.Is(err, ErrValidation) to detect any of them.
	ErrValidation = errors.New("validation error")

	// ErrLocked is returned when a mutation targets a locked flight or one of its records
	ErrLocked = fmt.Errorf("%w: flight is locked", ErrValidation)

	// ErrDuplicateEvent is returned when an event would occupy an already used
	// (flight, code, time kind) slot
	ErrDuplicateEvent = fmt.Errorf("%w: duplicate event for flight, code and time kind", ErrValidation)

	// ErrOutOfOrder is returned when an end event is timestamped before its start event
	ErrOutOfOrder = fmt.Errorf("%w: out-of-order event sequence", ErrValidation)

	// ErrInvalidKwargs is returned when a schedule kwargs expression cannot be parsed
	ErrInvalidKwargs = fmt.Errorf("%w: invalid kwargs", ErrValidation)

	// ErrConflict is returned by stores when a unique constraint would be violated
	ErrConflict = errors.New("unique constraint violated")
)

// ValidationError carries the field that failed and the reason.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError builds a ValidationError wrapping cause.
func NewValidationError(field, message string, cause error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: cause}
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrValidation
}

// Is makes every ValidationError match ErrValidation even when it wraps a
// cause that is not itself a validation error.
func (*ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// LockError describes which mutation was refused on a locked record.
type LockError struct {
	Action string
	Kind   string
	ID     int64
}

func (e *LockError) Error() string {
	switch e.Action {
	case ActionCreate:
		return fmt.Sprintf("you cannot create %s records for a locked flight", e.Kind)
	case ActionDelete:
		return fmt.Sprintf("you cannot delete %s %d of a locked flight", e.Kind, e.ID)
	default:
		return fmt.Sprintf("you cannot modify %s %d of a locked flight", e.Kind, e.ID)
	}
}

func (*LockError) Unwrap() error {
	return ErrLocked
}
