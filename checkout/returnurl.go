package checkout

import (
	"context"
	"net/url"
	"strconv"

	"github.com/uafrontender/newnew-sub010/intent"
)

// Query parameters of the return URL. The processor appends the setup_intent*
// and redirect_status parameters after a redirect.
const (
	QuerySaveCard     = "save_card"
	QuerySetupIntent  = "setup_intent"
	QueryClientSecret = "setup_intent_client_secret"
	QueryRedirect     = "redirect_status"
)

// RedirectSucceeded is the redirect_status of a completed setup.
const RedirectSucceeded = "succeeded"

// BuildReturnURL adds save_card=<bool> to base, which must be absolute.
func BuildReturnURL(base string, saveCard bool) (string, error) {
	u, err := url.Parse(base)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", ErrInvalidReturnURL
	}
	q := u.Query()
	q.Set(QuerySaveCard, strconv.FormatBool(saveCard))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ReturnParams is what the page handling the processor redirect needs to
// resume the checkout.
type ReturnParams struct {
	SaveCard       bool
	SetupIntentID  string
	ClientSecret   string
	RedirectStatus string
}

// Succeeded reports whether the processor completed the setup.
func (p ReturnParams) Succeeded() bool { return p.RedirectStatus == RedirectSucceeded }

// ParseReturnURL extracts ReturnParams. A missing save_card means false; an
// unparsable one is an error.
func ParseReturnURL(raw string) (ReturnParams, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ReturnParams{}, ErrInvalidReturnURL
	}
	q := u.Query()

	p := ReturnParams{
		SetupIntentID:  q.Get(QuerySetupIntent),
		ClientSecret:   q.Get(QueryClientSecret),
		RedirectStatus: q.Get(QueryRedirect),
	}
	if v := q.Get(QuerySaveCard); v != "" {
		p.SaveCard, err = strconv.ParseBool(v)
		if err != nil {
			return ReturnParams{}, &ValidationError{Field: QuerySaveCard, Message: "not a boolean"}
		}
	}
	return p, nil
}

// Resume finalizes a checkout after the processor redirected back. It
// rebuilds the attempt from the client secret in the URL.
func Resume(ctx context.Context, backend intent.Backend, p ReturnParams, email string, opts ...intent.Option) (intent.Status, error) {
	if !p.Succeeded() {
		return intent.StatusUnknown, &ConfirmationError{Code: p.RedirectStatus, Message: "setup was not completed"}
	}
	o, err := intent.Rehydrate(backend, p.ClientSecret, opts...)
	if err != nil {
		return intent.StatusUnknown, err
	}
	st, err := o.Finalize(ctx, intent.NewCard(p.SaveCard, email))
	if err != nil {
		return st, err
	}
	if !st.OK() {
		return st, &RejectedError{Step: "finalize", Status: st, Err: ErrFinalizeRejected}
	}
	return st, nil
}
