package retrieval

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports missing or malformed request fields. It is
// returned before any network activity.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// ConnectError indicates that the mail server could not be reached or
// refused the access token.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to mail server: %v", e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConnectError reports whether err is a ConnectError.
func IsConnectError(err error) bool {
	var c *ConnectError
	return errors.As(err, &c)
}
