package study

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden means the session belongs to a different participant.
	ErrForbidden = errors.New("session belongs to a different participant")

	// ErrSessionCompleted means the session is already closed.
	ErrSessionCompleted = errors.New("session already completed")

	// ErrNotFound means the participant or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCostLimit means a conversational exchange was refused because the
	// participant's daily or weekly spend is at its cap.
	ErrCostLimit = errors.New("cost limit reached")

	// ErrInvalidRequest means the backend rejected a malformed request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnavailable means a required backend capability is not configured.
	ErrUnavailable = errors.New("unavailable")
)

// TransitionError reports a phase change that violates the forward order.
type TransitionError struct {
	From   Phase
	To     Phase
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// Is makes a TransitionError match ErrInvalidRequest.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// CostLimitError carries the ledger state that caused a refusal.
type CostLimitError struct {
	Reason string
	Limits CostLimits
}

func (e *CostLimitError) Error() string {
	if e.Reason == "" {
		return ErrCostLimit.Error()
	}
	return e.Reason
}

// Is makes a CostLimitError match ErrCostLimit.
func (e *CostLimitError) Is(target error) bool {
	return target == ErrCostLimit
}

// IsFatal reports whether err means the current view cannot continue:
// the participant does not own the session or it is already closed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrSessionCompleted)
}
