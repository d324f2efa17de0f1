package checkout

import (
	"errors"
	"strconv"

	"github.com/uafrontender/newnew-sub010/intent"
)

var (
	// ErrUpdateRejected is wrapped by *RejectedError when the guest update is refused.
	ErrUpdateRejected = errors.New("checkout: update rejected")

	// ErrFinalizeRejected is wrapped by *RejectedError when finalize is refused.
	ErrFinalizeRejected = errors.New("checkout: finalize rejected")

	// ErrNoToken is returned when the new-card path runs without a processor token.
	ErrNoToken = errors.New("checkout: setup intent has no token")

	// ErrInvalidReturnURL is returned for a relative or unparsable return URL.
	ErrInvalidReturnURL = errors.New("checkout: invalid return url")
)

// ValidationError is a local, field-level problem. No network call was made.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	// Example: checkout: invalid field "email": email is required
	return "checkout: invalid field " + strconv.Quote(e.Field) + ": " + e.Message
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RejectedError reports a backend step that answered with a non-success status.
type RejectedError struct {
	Step   string
	Status intent.Status
	Err    error
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	// Example: checkout: "finalize" rejected with status "CARD_DECLINED"
	return "checkout: " + strconv.Quote(e.Step) + " rejected with status " + strconv.Quote(string(e.Status))
}

// Unwrap exposes ErrUpdateRejected / ErrFinalizeRejected.
func (e *RejectedError) Unwrap() error { return e.Err }

// ConfirmationError is reported when the processor's confirmation fails.
type ConfirmationError struct {
	Code    string
	Message string

	// RedirectURL is set when the processor requires the customer to
	// complete an action (e.g. 3-D Secure) before the setup can succeed.
	RedirectURL string

	Err error
}

// Error implements the error interface.
func (e *ConfirmationError) Error() string {
	// Example: checkout: processor confirmation failed: "card_declined"
	msg := "checkout: processor confirmation failed"
	if e.Code != "" {
		msg += ": " + strconv.Quote(e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns the underlying processor error.
func (e *ConfirmationError) Unwrap() error { return e.Err }

// IsConfirmation reports whether err is a *ConfirmationError.
func IsConfirmation(err error) bool {
	var ce *ConfirmationError
	return errors.As(err, &ce)
}

// MissingWiringError is returned by Submit when a required collaborator was not set.
type MissingWiringError struct{ Dep string }

// Error implements the error interface.
func (e MissingWiringError) Error() string {
	// Example: checkout: missing "Gate" wiring
	return "checkout: missing " + strconv.Quote(e.Dep) + " wiring"
}
