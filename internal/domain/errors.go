package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a goal, tactic or other row does not exist
	// for the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrConfirmationRequired is returned by operations that would discard
	// user data until the caller confirms them explicitly.
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ValidationError reports invalid input before any store or provider call.
// Field names the offending input so a client can focus it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a *ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
