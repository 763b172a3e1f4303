package session

import (
	"errors"
	"fmt"
)

var (
	ErrAgentNotFound       = errors.New("agent not found")
	ErrCommandNotFound     = errors.New("command not found")
	ErrInvalidState        = errors.New("invalid command state")
	ErrAllocationExhausted = errors.New("agent id space exhausted")
)

// ValidationError reports a rejected input. Session state is unchanged when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
