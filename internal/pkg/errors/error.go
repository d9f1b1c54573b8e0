package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrUnavailable    = errors.New("session store unavailable")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrTokenRevoked   = errors.New("token has been revoked")
	ErrInvalidUser    = errors.New("session user must have an id")
)

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unavailable marks a transport failure so handlers can map it to 503.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
