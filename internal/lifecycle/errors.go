package lifecycle

import (
	"errors"
	"fmt"

	"github.com/abhisek/studyctl/internal/study"
)

var (
	// ErrNotReady is returned for interaction intents before the session
	// has been acknowledged in the interaction phase.
	ErrNotReady = errors.New("interaction not ready")

	// ErrWrongModality is returned for an intent the participant's
	// modality does not support.
	ErrWrongModality = errors.New("intent not available for this modality")

	// ErrDeadlineNotReached is returned when acknowledging a time-up that
	// has not happened.
	ErrDeadlineNotReached = errors.New("recommended time has not elapsed")
)

// RetryableError is a failed network step of a phase transition. The
// operation that returned it is safe to invoke again.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s failed (retry): %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// retryable wraps err unless it is fatal for the view, in which case
// retrying cannot help.
func retryable(op string, err error) error {
	if study.IsFatal(err) {
		return err
	}
	return &RetryableError{Op: op, Err: err}
}
