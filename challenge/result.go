package challenge

import (
	"errors"
	"strconv"
	"strings"
)

// DefaultMinSuccessScore is the lowest invisible-check score treated as human.
const DefaultMinSuccessScore = 0.5

var (
	// ErrProviderUnavailable is returned when no invisible token can be obtained.
	ErrProviderUnavailable = errors.New("challenge: token provider unavailable")

	// ErrEmptyToken is returned when a verification is attempted with no token.
	ErrEmptyToken = errors.New("challenge: empty token")

	// ErrNilAction is returned by GuardedInvoke when action is nil.
	ErrNilAction = errors.New("challenge: nil action")
)

// Result is the verdict of an invisible (score based) check.
type Result struct {
	Passed     bool
	Score      *float64
	ErrorCodes []string
}

// PassedWith reports whether r passes with at least minScore.
// A missing score never passes.
func (r Result) PassedWith(minScore float64) bool {
	return r.Passed && r.Score != nil && *r.Score >= minScore
}

// Outcome tells the caller what GuardedInvoke did.
type Outcome int

const (
	// OutcomeInvoked means the action ran; its error, if any, is returned alongside.
	OutcomeInvoked Outcome = iota + 1

	// OutcomeBypassed means verification was skipped for this environment and the action ran.
	OutcomeBypassed

	// OutcomeVisibleRequired means the invisible check failed; render the visible
	// challenge and submit again.
	OutcomeVisibleRequired

	// OutcomeBusy means another invocation was in flight and this one was dropped.
	OutcomeBusy
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeInvoked:
		return "invoked"
	case OutcomeBypassed:
		return "bypassed"
	case OutcomeVisibleRequired:
		return "visible_required"
	case OutcomeBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Ran reports whether the guarded action was executed.
func (o Outcome) Ran() bool { return o == OutcomeInvoked || o == OutcomeBypassed }

// FailedError is returned when the visible challenge is rejected.
type FailedError struct {
	// Message is the backend's reason, when it sent one.
	Message string
}

// Error implements the error interface.
func (e *FailedError) Error() string {
	// Example: challenge: recaptcha error: "timeout-or-duplicate"
	if e.Message == "" {
		return "challenge: recaptcha error"
	}
	return "challenge: recaptcha error: " + strconv.Quote(e.Message)
}

// IsFailed reports whether err is a visible challenge rejection.
func IsFailed(err error) bool {
	var fe *FailedError
	return errors.As(err, &fe)
}

func joinCodes(codes []string) string { return strings.Join(codes, ",") }
