package service

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited       = errors.New("too many booking attempts, try again later")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError rejects malformed input. Nothing is written when it is returned.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
