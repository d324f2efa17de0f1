package checkout

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/uafrontender/newnew-sub010/api"
	"github.com/uafrontender/newnew-sub010/challenge"
)

// Notification is a transient, user-facing message (a toast).
type Notification struct {
	Message string
	Err     error
}

// Notifier shows notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to a logger. It is the default when no
// UI is attached (CLI, tests).
type LogNotifier struct{ Log *zap.Logger }

// Notify implements Notifier.
func (l LogNotifier) Notify(_ context.Context, n Notification) {
	if l.Log == nil {
		return
	}
	l.Log.Warn(n.Message, zap.Error(n.Err))
}

// Messages holds the user-facing strings. Loading translations is left to
// the caller; DefaultMessages is English. Processor and transport error text
// never reaches the user; it is logged instead.
type Messages struct {
	EmailRequired         string
	PaymentMethodRequired string
	ChallengeFailed       string
	UpdateRejected        string
	FinalizeRejected      string
	ConfirmationFailed    string
	RequestFailed         string
	Generic               string
}

// DefaultMessages returns the English strings.
func DefaultMessages() Messages {
	return Messages{
		EmailRequired:         "Please enter your email",
		PaymentMethodRequired: "Please enter your card details",
		ChallengeFailed:       "We could not verify you are human. Please try again",
		UpdateRejected:        "We could not prepare your payment. Please try again",
		FinalizeRejected:      "Your payment was not completed. Please try again",
		ConfirmationFailed:    "Your card could not be confirmed",
		RequestFailed:         "Something went wrong. Please try again",
		Generic:               "Something went wrong",
	}
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.EmailRequired, d.EmailRequired)
	fill(&m.PaymentMethodRequired, d.PaymentMethodRequired)
	fill(&m.ChallengeFailed, d.ChallengeFailed)
	fill(&m.UpdateRejected, d.UpdateRejected)
	fill(&m.FinalizeRejected, d.FinalizeRejected)
	fill(&m.ConfirmationFailed, d.ConfirmationFailed)
	fill(&m.RequestFailed, d.RequestFailed)
	fill(&m.Generic, d.Generic)
	return m
}

// For picks the message shown for err.
func (m Messages) For(err error) string {
	switch {
	case challenge.IsFailed(err):
		return m.ChallengeFailed
	case errors.Is(err, ErrUpdateRejected):
		return m.UpdateRejected
	case errors.Is(err, ErrFinalizeRejected):
		return m.FinalizeRejected
	case IsConfirmation(err):
		return m.ConfirmationFailed
	case api.IsRequestError(err):
		return m.RequestFailed
	default:
		return m.Generic
	}
}
