package common

import "fmt"

// ValidationError wraps ErrorValidation with a client-facing message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrorValidation, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrorValidation }

// NewValidationError returns an error that matches ErrorValidation and keeps msg
// for the response body.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MessageError attaches a client-facing message to one of the sentinel errors.
type MessageError struct {
	Err     error
	Message string
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Message)
}

func (e *MessageError) Unwrap() error { return e.Err }

func WithMessage(err error, format string, args ...any) error {
	return &MessageError{Err: err, Message: fmt.Sprintf(format, args...)}
}
