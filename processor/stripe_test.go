package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/uafrontender/newnew-sub010/checkout"
)

type fakeSetupIntents struct {
	si  *stripe.SetupIntent
	err error

	ids    []string
	params []*stripe.SetupIntentConfirmParams
}

func (f *fakeSetupIntents) Confirm(id string, params *stripe.SetupIntentConfirmParams) (*stripe.SetupIntent, error) {
	f.ids = append(f.ids, id)
	f.params = append(f.params, params)
	return f.si, f.err
}

func request() checkout.ConfirmRequest {
	return checkout.ConfirmRequest{
		ClientSecret:    "seti_123_secret_abc",
		PaymentMethodID: "pm_card_visa",
		ReturnURL:       "https://newnew.co/return?save_card=true",
	}
}

// TestSetupIntentID verifies the id is cut out of the client secret.
func TestSetupIntentID(t *testing.T) {
	t.Parallel()

	id, err := SetupIntentID("seti_123_secret_abc")
	require.NoError(t, err)
	assert.Equal(t, "seti_123", id)

	for _, bad := range []string{"", "seti_123", "_secret_abc"} {
		_, err := SetupIntentID(bad)
		assert.ErrorIs(t, err, ErrBadClientSecret, bad)
	}
}

// TestConfirmSetup_Succeeded verifies params and a successful confirmation.
func TestConfirmSetup_Succeeded(t *testing.T) {
	t.Parallel()

	api := &fakeSetupIntents{si: &stripe.SetupIntent{ID: "seti_123", Status: stripe.SetupIntentStatusSucceeded}}
	c := NewConfirmer(api, nil)

	ctx := context.Background()
	require.NoError(t, c.ConfirmSetup(ctx, request()))

	require.Len(t, api.params, 1)
	assert.Equal(t, []string{"seti_123"}, api.ids)
	p := api.params[0]
	assert.Equal(t, ctx, p.Context)
	assert.Equal(t, "pm_card_visa", stripe.StringValue(p.PaymentMethod))
	assert.Equal(t, "https://newnew.co/return?save_card=true", stripe.StringValue(p.ReturnURL))
}

// TestConfirmSetup_RequiresAction verifies the redirect URL is surfaced.
func TestConfirmSetup_RequiresAction(t *testing.T) {
	t.Parallel()

	api := &fakeSetupIntents{si: &stripe.SetupIntent{
		ID:     "seti_123",
		Status: stripe.SetupIntentStatusRequiresAction,
		NextAction: &stripe.SetupIntentNextAction{
			RedirectToURL: &stripe.SetupIntentNextActionRedirectToURL{URL: "https://hooks.stripe.com/3ds"},
		},
	}}

	err := NewConfirmer(api, nil).ConfirmSetup(context.Background(), request())
	var ce *checkout.ConfirmationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "https://hooks.stripe.com/3ds", ce.RedirectURL)
}

// TestConfirmSetup_Failed verifies the last setup error is reported.
func TestConfirmSetup_Failed(t *testing.T) {
	t.Parallel()

	api := &fakeSetupIntents{si: &stripe.SetupIntent{
		ID:             "seti_123",
		Status:         stripe.SetupIntentStatusRequiresPaymentMethod,
		LastSetupError: &stripe.Error{Code: stripe.ErrorCodeCardDeclined, Msg: "Your card was declined."},
	}}

	err := NewConfirmer(api, nil).ConfirmSetup(context.Background(), request())
	var ce *checkout.ConfirmationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "card_declined", ce.Code)
	assert.Equal(t, "Your card was declined.", ce.Message)
}

// TestConfirmSetup_StripeErrors verifies API errors are mapped.
func TestConfirmSetup_StripeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantDown bool
	}{
		{name: "declined", err: &stripe.Error{Code: stripe.ErrorCodeCardDeclined, Msg: "declined", HTTPStatusCode: 402}, wantCode: "card_declined"},
		{name: "outage", err: &stripe.Error{Msg: "oops", HTTPStatusCode: 503}, wantDown: true},
		{name: "transport", err: errors.New("dial tcp: timeout")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewConfirmer(&fakeSetupIntents{err: tt.err}, nil).ConfirmSetup(context.Background(), request())
			var ce *checkout.ConfirmationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantCode, ce.Code)
			assert.Equal(t, tt.wantDown, errors.Is(err, ErrProviderDown))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

// TestConfirmSetup_BadSecret verifies nothing is sent for a malformed secret.
func TestConfirmSetup_BadSecret(t *testing.T) {
	t.Parallel()

	api := &fakeSetupIntents{}
	err := NewConfirmer(api, nil).ConfirmSetup(context.Background(), checkout.ConfirmRequest{ClientSecret: "nope"})
	require.ErrorIs(t, err, ErrBadClientSecret)
	assert.Empty(t, api.ids)
}

// TestNewStripeConfirmer verifies the key is required.
func TestNewStripeConfirmer(t *testing.T) {
	t.Parallel()

	_, err := NewStripeConfirmer(Config{})
	require.ErrorIs(t, err, ErrMissingSecretKey)

	c, err := NewStripeConfirmer(Config{SecretKey: "sk_test_123"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
