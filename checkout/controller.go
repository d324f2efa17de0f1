package checkout

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/uafrontender/newnew-sub010/challenge"
	"github.com/uafrontender/newnew-sub010/instruments"
	"github.com/uafrontender/newnew-sub010/intent"
)

/*
Interfaces (what the controller is wired with)
*/

// Gate runs the protected part of a submission once the caller is judged human.
type Gate interface {
	GuardedInvoke(ctx context.Context, action challenge.Action) (challenge.Outcome, error)
}

// Intent is the per-attempt setup-intent orchestrator.
type Intent interface {
	Update(ctx context.Context, opts intent.UpdateOptions) (intent.Status, error)
	Finalize(ctx context.Context, opts intent.FinalizeOptions) (intent.Status, error)
	Token() (string, bool)
}

// ConfirmRequest is handed to the processor's client-side confirmation.
type ConfirmRequest struct {
	ClientSecret    string
	PaymentMethodID string
	ReturnURL       string
}

// Confirmer is the processor SDK's setup confirmation. It returns a
// *ConfirmationError when the processor rejects the instrument.
type Confirmer interface {
	ConfirmSetup(ctx context.Context, req ConfirmRequest) error
}

// PrimarySource exposes the user's primary saved instrument.
type PrimarySource interface {
	Primary() (instruments.Instrument, bool)
}

// CardSource is a PrimarySource that also reports list changes.
type CardSource interface {
	PrimarySource
	Subscribe(fn func([]instruments.Instrument)) (unsubscribe func())
}

// Selection is the instrument the user chose to pay with.
type Selection int

const (
	SelectionNone Selection = iota
	SelectionPrimary
	SelectionNew
)

// String implements fmt.Stringer.
func (s Selection) String() string {
	switch s {
	case SelectionPrimary:
		return "primary"
	case SelectionNew:
		return "new"
	default:
		return "none"
	}
}

// Form is what the user entered.
type Form struct {
	Email           string
	SaveCard        bool
	PaymentMethodID string
}

// Controller sequences one checkout form: gate, optional guest update,
// processor confirmation, finalize. Collaborators are injected through the
// exported fields; Gate, Intent and Confirmer are required.
type Controller struct {
	Gate      Gate
	Intent    Intent
	Confirmer Confirmer

	// Cards is optional; without it every submission takes the new-card path.
	Cards PrimarySource

	Notifier Notifier
	Messages Messages
	Log      *zap.Logger

	Authenticated bool
	ReturnURL     string

	submitting atomic.Bool

	mu        sync.Mutex
	selection Selection
	chosen    bool
	unwatch   func()
}

// Watch makes Cards follow src and applies the one-time PRIMARY default as
// soon as a primary instrument shows up.
func (c *Controller) Watch(src CardSource) {
	c.mu.Lock()
	c.Cards = src
	prev := c.unwatch
	c.mu.Unlock()
	if prev != nil {
		prev()
	}

	off := src.Subscribe(func([]instruments.Instrument) { c.applyDefault(src) })

	c.mu.Lock()
	c.unwatch = off
	c.mu.Unlock()
	c.applyDefault(src)
}

// Close stops following the card source.
func (c *Controller) Close() error {
	c.mu.Lock()
	off := c.unwatch
	c.unwatch = nil
	c.mu.Unlock()
	if off != nil {
		off()
	}
	return nil
}

// Select records an explicit choice. Once made, the PRIMARY default is never
// applied again.
func (c *Controller) Select(s Selection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = s
	c.chosen = true
}

// Selection returns the current choice.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Submitting reports whether a submission is in flight.
func (c *Controller) Submitting() bool { return c.submitting.Load() }

func (c *Controller) applyDefault(src PrimarySource) {
	if _, ok := src.Primary(); !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chosen {
		return
	}
	c.selection = SelectionPrimary
	c.chosen = true
	c.logger().Debug("selection defaulted to primary")
}

// Submit validates the form and runs the checkout behind the gate.
//
// A *ValidationError is returned before anything touches the network. Every
// other failure is also passed to the Notifier; the controller is ready for
// another Submit afterwards. A Submit made while one is in flight returns
// challenge.OutcomeBusy.
func (c *Controller) Submit(ctx context.Context, form Form) (challenge.Outcome, error) {
	if err := c.checkWiring(); err != nil {
		return 0, err
	}
	msgs := c.Messages.withDefaults()
	form.Email = strings.TrimSpace(form.Email)

	if !c.Authenticated && form.Email == "" {
		return 0, &ValidationError{Field: "email", Message: msgs.EmailRequired}
	}

	primary, usePrimary := c.primaryChoice()
	if !usePrimary && form.PaymentMethodID == "" {
		return 0, &ValidationError{Field: "payment_method", Message: msgs.PaymentMethodRequired}
	}

	if !c.submitting.CompareAndSwap(false, true) {
		return challenge.OutcomeBusy, nil
	}
	defer c.submitting.Store(false)

	log := c.logger().With(zap.Bool("authenticated", c.Authenticated), zap.Bool("primary", usePrimary))

	out, err := c.Gate.GuardedInvoke(ctx, func(ctx context.Context) error {
		if usePrimary {
			return c.payWithPrimary(ctx, primary)
		}
		return c.payWithNewCard(ctx, form)
	})
	if err != nil {
		log.Warn("checkout failed", zap.Stringer("outcome", out), zap.Error(err))
		c.notify(ctx, Notification{Message: msgs.For(err), Err: err})
		return out, err
	}
	log.Info("checkout submitted", zap.Stringer("outcome", out))
	return out, nil
}

func (c *Controller) payWithPrimary(ctx context.Context, card instruments.Instrument) error {
	opts, err := intent.SavedCard(card.ID)
	if err != nil {
		return err
	}
	st, err := c.Intent.Finalize(ctx, opts)
	if err != nil {
		return err
	}
	if !st.OK() {
		return &RejectedError{Step: "finalize", Status: st, Err: ErrFinalizeRejected}
	}
	return nil
}

func (c *Controller) payWithNewCard(ctx context.Context, form Form) error {
	if !c.Authenticated {
		save := form.SaveCard
		st, err := c.Intent.Update(ctx, intent.UpdateOptions{GuestEmail: form.Email, SaveCard: &save})
		if err != nil {
			return err
		}
		if !st.OK() {
			return &RejectedError{Step: "update", Status: st, Err: ErrUpdateRejected}
		}
	}

	token, ok := c.Intent.Token()
	if !ok {
		return ErrNoToken
	}
	returnURL, err := BuildReturnURL(c.ReturnURL, form.SaveCard)
	if err != nil {
		return err
	}

	err = c.Confirmer.ConfirmSetup(ctx, ConfirmRequest{
		ClientSecret:    token,
		PaymentMethodID: form.PaymentMethodID,
		ReturnURL:       returnURL,
	})
	if err != nil {
		if !IsConfirmation(err) {
			err = &ConfirmationError{Message: err.Error(), Err: err}
		}
		return err
	}

	st, err := c.Intent.Finalize(ctx, intent.NewCard(form.SaveCard, form.Email))
	if err != nil {
		return err
	}
	if !st.OK() {
		return &RejectedError{Step: "finalize", Status: st, Err: ErrFinalizeRejected}
	}
	return nil
}

func (c *Controller) primaryChoice() (instruments.Instrument, bool) {
	c.mu.Lock()
	sel, src := c.selection, c.Cards
	c.mu.Unlock()
	if sel != SelectionPrimary || src == nil {
		return instruments.Instrument{}, false
	}
	return src.Primary()
}

func (c *Controller) checkWiring() error {
	switch {
	case c.Gate == nil:
		return MissingWiringError{Dep: "Gate"}
	case c.Intent == nil:
		return MissingWiringError{Dep: "Intent"}
	case c.Confirmer == nil:
		return MissingWiringError{Dep: "Confirmer"}
	}
	return nil
}

func (c *Controller) notify(ctx context.Context, n Notification) {
	if c.Notifier == nil {
		LogNotifier{Log: c.logger()}.Notify(ctx, n)
		return
	}
	c.Notifier.Notify(ctx, n)
}

func (c *Controller) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}
