package source

import (
	"context"
	"fmt"
)

// OpenError indicates that a session could not connect or authenticate.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening mail session: %v", e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// WithSession opens a session for user, runs fn with it, and closes it
// exactly once whatever happens, including when Open fails. Close errors
// are passed to onCloseErr (if non-nil) and otherwise dropped.
func WithSession(
	ctx context.Context,
	src Source,
	user, accessToken string,
	onCloseErr func(error),
	fn func(Session) error,
) error {
	sess := src.NewSession(user, accessToken)
	defer func() {
		if err := sess.Close(); err != nil && onCloseErr != nil {
			onCloseErr(err)
		}
	}()

	if err := sess.Open(ctx); err != nil {
		return &OpenError{Err: err}
	}

	return fn(sess)
}
