package lifecycle

import "errors"

// Error kinds returned by the engine. Handlers map these to HTTP statuses;
// nothing here is ever retried internally.
var (
	// ErrNotFound means the case, user or officer does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the actor lacks permission for the case or operation
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition means the state machine rejected the requested status change
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidState means the operation does not apply to the case's current state
	ErrInvalidState = errors.New("operation not valid in current state")
	// ErrNotEligible means the escalation preconditions are unmet
	ErrNotEligible = errors.New("not eligible for escalation")
	// ErrAlreadyRated means the case has already been rated
	ErrAlreadyRated = errors.New("case already rated")
	// ErrInvalidInput means a malformed field, timestamp or rating value
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable means the case store could not serve the operation
	ErrUnavailable = errors.New("case store unavailable")
)
