package intent

import (
	"errors"
	"strconv"
)

var (
	// ErrAlreadyInitialized is returned by a second Initialize on the same Orchestrator.
	ErrAlreadyInitialized = errors.New("intent: already initialized")

	// ErrNotInitialized is returned by Update/Finalize before a successful Initialize.
	ErrNotInitialized = errors.New("intent: not initialized")

	// ErrAlreadyFinalized is returned by every operation after a successful Finalize.
	ErrAlreadyFinalized = errors.New("intent: already finalized")

	// ErrUnusableResponse is returned when create-setup-intent answers without
	// a status or token.
	ErrUnusableResponse = errors.New("intent: backend returned no usable status")

	// ErrConflictingOptions is returned when both finalize variants are populated.
	ErrConflictingOptions = errors.New("intent: finalize options set both card uuid and new-card fields")

	// ErrEmptyCardUUID is returned when the saved-card variant has no card uuid.
	ErrEmptyCardUUID = errors.New("intent: empty card uuid")

	// ErrNilFactory is returned when no request factory was supplied.
	ErrNilFactory = errors.New("intent: nil request factory")
)

// StateError reports an operation called out of sequence. The Orchestrator
// must be discarded and a new one created for the next attempt.
type StateError struct {
	Op    string
	State State
	Err   error
}

// Error implements the error interface.
func (e *StateError) Error() string {
	// Example: intent: "update" in state "uninitialized": intent: not initialized
	return "intent: " + strconv.Quote(e.Op) + " in state " + strconv.Quote(e.State.String()) + ": " + e.Err.Error()
}

// Unwrap exposes the sentinel for errors.Is.
func (e *StateError) Unwrap() error { return e.Err }

// IsStateError reports whether err is an out-of-sequence call.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
