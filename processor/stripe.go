// Package processor confirms setup intents with the payment processor.
package processor

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"github.com/uafrontender/newnew-sub010/checkout"
)

var (
	// ErrMissingSecretKey is returned when no API key is configured.
	ErrMissingSecretKey = errors.New("processor: missing secret key")

	// ErrBadClientSecret is returned for a client secret that does not embed a setup intent id.
	ErrBadClientSecret = errors.New("processor: malformed client secret")

	// ErrProviderDown is wrapped for 5xx answers from the processor.
	ErrProviderDown = errors.New("processor: provider unavailable")
)

// SetupIntentAPI is the part of the Stripe client the confirmer uses.
type SetupIntentAPI interface {
	Confirm(id string, params *stripe.SetupIntentConfirmParams) (*stripe.SetupIntent, error)
}

// Config for NewStripeConfirmer.
type Config struct {
	SecretKey string
	Log       *zap.Logger
}

// StripeConfirmer implements checkout.Confirmer on top of Stripe setup intents.
type StripeConfirmer struct {
	api SetupIntentAPI
	log *zap.Logger
}

// NewStripeConfirmer builds a confirmer backed by a fresh Stripe client.
// We use a client.API instead of the package-level setupintent functions to
// avoid global key state.
func NewStripeConfirmer(cfg Config) (*StripeConfirmer, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}
	sc := client.New(cfg.SecretKey, nil)
	return NewConfirmer(sc.SetupIntents, cfg.Log), nil
}

// NewConfirmer wraps any SetupIntentAPI.
func NewConfirmer(api SetupIntentAPI, log *zap.Logger) *StripeConfirmer {
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeConfirmer{api: api, log: log}
}

// SetupIntentID extracts "seti_123" from "seti_123_secret_abc".
func SetupIntentID(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || id == "" {
		return "", ErrBadClientSecret
	}
	return id, nil
}

// ConfirmSetup implements checkout.Confirmer.
//
// A setup that needs customer action returns a *checkout.ConfirmationError
// carrying the redirect URL; the checkout resumes from the return URL.
func (c *StripeConfirmer) ConfirmSetup(ctx context.Context, req checkout.ConfirmRequest) error {
	id, err := SetupIntentID(req.ClientSecret)
	if err != nil {
		return err
	}

	params := &stripe.SetupIntentConfirmParams{}
	params.Context = ctx
	if req.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodID)
	}
	if req.ReturnURL != "" {
		params.ReturnURL = stripe.String(req.ReturnURL)
	}

	si, err := c.api.Confirm(id, params)
	if err != nil {
		c.log.Warn("confirm setup intent failed", zap.String("setup_intent", id), zap.Error(err))
		return mapStripeError(err)
	}

	log := c.log.With(zap.String("setup_intent", si.ID), zap.String("status", string(si.Status)))
	switch si.Status {
	case stripe.SetupIntentStatusSucceeded, stripe.SetupIntentStatusProcessing:
		log.Debug("setup intent confirmed")
		return nil
	case stripe.SetupIntentStatusRequiresAction:
		ce := &checkout.ConfirmationError{Code: string(si.Status), Message: "additional authentication required"}
		if si.NextAction != nil && si.NextAction.RedirectToURL != nil {
			ce.RedirectURL = si.NextAction.RedirectToURL.URL
		}
		log.Info("setup intent requires action", zap.Bool("redirect", ce.RedirectURL != ""))
		return ce
	default:
		ce := &checkout.ConfirmationError{Code: string(si.Status)}
		if si.LastSetupError != nil {
			ce.Code = string(si.LastSetupError.Code)
			ce.Message = si.LastSetupError.Msg
		}
		log.Info("setup intent not confirmed", zap.String("code", ce.Code))
		return ce
	}
}

// mapStripeError turns a *stripe.Error into a *checkout.ConfirmationError so
// stripe types do not leak into the checkout flow.
func mapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &checkout.ConfirmationError{Message: err.Error(), Err: err}
	}
	if se.HTTPStatusCode >= http.StatusInternalServerError {
		return &checkout.ConfirmationError{Code: string(se.Code), Message: se.Msg, Err: errors.Join(ErrProviderDown, err)}
	}
	return &checkout.ConfirmationError{Code: string(se.Code), Message: se.Msg, Err: err}
}
