package service

import (
	"errors"
	"fmt"
)

// ErrValidation marks a malformed request: bad amount, split-sum mismatch,
// duplicate participant. Handlers map it to 400.
var ErrValidation = errors.New("validation failed")

// validationf wraps ErrValidation with a caller-visible detail message.
func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
