package common

import "fmt"

var (
	ErrValidationError      = fmt.Errorf("validation error")
	ErrFileNotFoundError    = fmt.Errorf("file not found")
	ErrFileTooLargeError    = fmt.Errorf("file too large")
	ErrDegradedReadError    = fmt.Errorf("cannot read storage directory")
	ErrShuttingDownError    = fmt.Errorf("server is shutting down")
	ErrAddressNotFoundError = fmt.Errorf("address not found")
)

// ValidationError carries a user facing message and matches ErrValidationError.
type ValidationError struct {
	Msg string
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationError
}
