package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/uafrontender/newnew-sub010/api"
	"github.com/uafrontender/newnew-sub010/challenge"
	"github.com/uafrontender/newnew-sub010/instruments"
	"github.com/uafrontender/newnew-sub010/intent"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder keeps the order of calls across every fake.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeVerifier struct {
	rec   *recorder
	score float64
}

func (v *fakeVerifier) VerifyInvisible(context.Context, string) (challenge.Result, error) {
	v.rec.add("verify")
	s := v.score
	return challenge.Result{Passed: true, Score: &s}, nil
}

func (v *fakeVerifier) VerifyVisible(context.Context, string) (bool, error) {
	v.rec.add("verify-visible")
	return true, nil
}

type fakeBackend struct {
	rec        *recorder
	updateSt   intent.Status
	finalizeSt intent.Status

	updates   []intent.UpdateRequest
	finalizes []intent.FinalizeRequest
}

func (b *fakeBackend) CreateSetupIntent(context.Context, string, intent.CreateRequest) (intent.CreateResponse, error) {
	b.rec.add("create")
	return intent.CreateResponse{Status: intent.StatusSuccess, SetupIntentClientSecret: "seti_1_secret_x"}, nil
}

func (b *fakeBackend) UpdateSetupIntent(_ context.Context, _ string, req intent.UpdateRequest) (intent.Status, error) {
	b.rec.add("update")
	b.updates = append(b.updates, req)
	return b.updateSt, nil
}

func (b *fakeBackend) FinalizeSetupIntent(_ context.Context, _ string, req intent.FinalizeRequest) (intent.Status, error) {
	b.rec.add("finalize")
	b.finalizes = append(b.finalizes, req)
	return b.finalizeSt, nil
}

type fakeConfirmer struct {
	rec  *recorder
	err  error
	reqs []ConfirmRequest
}

func (f *fakeConfirmer) ConfirmSetup(_ context.Context, req ConfirmRequest) error {
	f.rec.add("confirm")
	f.reqs = append(f.reqs, req)
	return f.err
}

type fakeCards struct {
	mu      sync.Mutex
	primary *instruments.Instrument
	subs    []func([]instruments.Instrument)
}

func (f *fakeCards) Primary() (instruments.Instrument, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primary == nil {
		return instruments.Instrument{}, false
	}
	return *f.primary, true
}

func (f *fakeCards) Subscribe(fn func([]instruments.Instrument)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.subs = nil
		f.mu.Unlock()
	}
}

func (f *fakeCards) setPrimary(in *instruments.Instrument) {
	f.mu.Lock()
	f.primary = in
	subs := append(([]func([]instruments.Instrument))(nil), f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(nil)
	}
}

type harness struct {
	rec       *recorder
	backend   *fakeBackend
	confirmer *fakeConfirmer
	orch      *intent.Orchestrator
	notes     []Notification
	ctl       *Controller
}

func newHarness(t *testing.T, authenticated bool, score float64) *harness {
	t.Helper()

	rec := &recorder{}
	h := &harness{
		rec:       rec,
		backend:   &fakeBackend{rec: rec, updateSt: intent.StatusSuccess, finalizeSt: intent.StatusSuccess},
		confirmer: &fakeConfirmer{rec: rec},
	}
	h.orch = intent.New(h.backend, func() (intent.CreateRequest, error) {
		return intent.CreateRequest{Purpose: intent.PurposeCardSetup}, nil
	})
	_, _, err := h.orch.Initialize(context.Background())
	require.NoError(t, err)

	provider := challenge.TokenProviderFunc(func(context.Context, string) (string, error) { return "tok", nil })
	gate := challenge.NewGate(challenge.Config{Action: "checkout", MinSuccessScore: 0.5}, provider, &fakeVerifier{rec: rec, score: score})

	h.ctl = &Controller{
		Gate:          gate,
		Intent:        h.orch,
		Confirmer:     h.confirmer,
		Authenticated: authenticated,
		ReturnURL:     "https://newnew.co/checkout/return",
		Notifier: NotifierFunc(func(_ context.Context, n Notification) {
			h.notes = append(h.notes, n)
		}),
	}
	return h
}

// TestController_GuestWithoutEmail verifies validation fails before any network call.
func TestController_GuestWithoutEmail(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, 0.9)
	before := h.rec.list()

	_, err := h.ctl.Submit(context.Background(), Form{Email: "   ", PaymentMethodID: "pm_1"})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
	assert.Equal(t, DefaultMessages().EmailRequired, ve.Message)
	assert.Equal(t, before, h.rec.list())
	assert.Empty(t, h.notes)
	assert.False(t, h.ctl.Submitting())
}

// TestController_PrimaryCard verifies a saved primary card is finalized directly.
func TestController_PrimaryCard(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true, 0.9)
	h.ctl.Watch(&fakeCards{primary: &instruments.Instrument{ID: "card_1", Last4: "4242", IsPrimary: true}})
	t.Cleanup(func() { _ = h.ctl.Close() })
	require.Equal(t, SelectionPrimary, h.ctl.Selection())

	out, err := h.ctl.Submit(context.Background(), Form{})
	require.NoError(t, err)
	assert.Equal(t, challenge.OutcomeInvoked, out)

	assert.Equal(t, []string{"create", "verify", "finalize"}, h.rec.list())
	require.Len(t, h.backend.finalizes, 1)
	opts := h.backend.finalizes[0].Options
	assert.Equal(t, intent.FinalizeSavedCard, opts.Kind())
	assert.Equal(t, "card_1", opts.CardUUID())
	assert.Empty(t, h.backend.updates)
	assert.Equal(t, intent.StateFinalized, h.orch.State())
}

// TestController_GuestNewCard verifies update precedes confirmation and finalize follows it.
func TestController_GuestNewCard(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, 0.9)

	out, err := h.ctl.Submit(context.Background(), Form{Email: "a@b.com", SaveCard: true, PaymentMethodID: "pm_1"})
	require.NoError(t, err)
	assert.Equal(t, challenge.OutcomeInvoked, out)

	assert.Equal(t, []string{"create", "verify", "update", "confirm", "finalize"}, h.rec.list())

	require.Len(t, h.backend.updates, 1)
	upd := h.backend.updates[0]
	assert.Equal(t, "a@b.com", upd.GuestEmail)
	require.NotNil(t, upd.SaveCard)
	assert.True(t, *upd.SaveCard)

	require.Len(t, h.confirmer.reqs, 1)
	assert.Equal(t, ConfirmRequest{
		ClientSecret:    "seti_1_secret_x",
		PaymentMethodID: "pm_1",
		ReturnURL:       "https://newnew.co/checkout/return?save_card=true",
	}, h.confirmer.reqs[0])

	require.Len(t, h.backend.finalizes, 1)
	opts := h.backend.finalizes[0].Options
	assert.Equal(t, intent.FinalizeNewCard, opts.Kind())
	assert.True(t, opts.SaveCard())
	assert.Equal(t, "a@b.com", opts.Email())
}

// TestController_ConfirmationFailureSkipsFinalize verifies a processor error is notified and retryable.
func TestController_ConfirmationFailureSkipsFinalize(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true, 0.9)
	h.confirmer.err = &ConfirmationError{Code: "card_declined", Message: "Your card was declined."}

	_, err := h.ctl.Submit(context.Background(), Form{PaymentMethodID: "pm_1"})
	require.True(t, IsConfirmation(err))
	assert.Empty(t, h.backend.finalizes)
	assert.Empty(t, h.backend.updates)
	require.Len(t, h.notes, 1)
	assert.Equal(t, DefaultMessages().ConfirmationFailed, h.notes[0].Message)
	assert.ErrorContains(t, h.notes[0].Err, "Your card was declined.")
	assert.False(t, h.ctl.Submitting())

	// plain errors from the confirmer are wrapped, and their text stays out of the toast
	h.confirmer.err = errors.New("processor: malformed client secret")
	_, err = h.ctl.Submit(context.Background(), Form{PaymentMethodID: "pm_1"})
	require.True(t, IsConfirmation(err))
	require.Len(t, h.notes, 2)
	assert.Equal(t, DefaultMessages().ConfirmationFailed, h.notes[1].Message)

	h.confirmer.err = nil
	_, err = h.ctl.Submit(context.Background(), Form{PaymentMethodID: "pm_1"})
	require.NoError(t, err)
	assert.Len(t, h.backend.finalizes, 1)
}

// TestController_UpdateRejected verifies a non-success update aborts before confirmation.
func TestController_UpdateRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, 0.9)
	h.backend.updateSt = intent.StatusInvalidRequest

	_, err := h.ctl.Submit(context.Background(), Form{Email: "a@b.com", PaymentMethodID: "pm_1"})
	require.ErrorIs(t, err, ErrUpdateRejected)
	assert.Empty(t, h.confirmer.reqs)
	require.Len(t, h.notes, 1)
	assert.Equal(t, DefaultMessages().UpdateRejected, h.notes[0].Message)
}

// TestController_FinalizeRejected verifies a declined finalize is surfaced.
func TestController_FinalizeRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true, 0.9)
	h.ctl.Cards = &fakeCards{primary: &instruments.Instrument{ID: "card_1", IsPrimary: true}}
	h.ctl.Select(SelectionPrimary)
	h.backend.finalizeSt = intent.StatusCardDeclined

	_, err := h.ctl.Submit(context.Background(), Form{})
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, intent.StatusCardDeclined, re.Status)
	assert.ErrorIs(t, err, ErrFinalizeRejected)
	assert.Equal(t, intent.StateInitialized, h.orch.State())
}

// TestController_LowScoreEscalates verifies the action does not run when the gate escalates.
func TestController_LowScoreEscalates(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, 0.3)

	out, err := h.ctl.Submit(context.Background(), Form{Email: "a@b.com", PaymentMethodID: "pm_1"})
	require.NoError(t, err)
	assert.Equal(t, challenge.OutcomeVisibleRequired, out)
	assert.Equal(t, []string{"create", "verify"}, h.rec.list())
	assert.Empty(t, h.notes)
}

// TestController_PrimarySelectedButMissing verifies the new-card path is used without a primary.
func TestController_PrimarySelectedButMissing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true, 0.9)
	h.ctl.Cards = &fakeCards{}
	h.ctl.Select(SelectionPrimary)

	_, err := h.ctl.Submit(context.Background(), Form{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "payment_method", ve.Field)
	assert.Equal(t, DefaultMessages().PaymentMethodRequired, ve.Message)

	_, err = h.ctl.Submit(context.Background(), Form{PaymentMethodID: "pm_2"})
	require.NoError(t, err)
	assert.Len(t, h.confirmer.reqs, 1)
}

// TestController_DefaultSelectionAppliedOnce verifies PRIMARY is defaulted only until the user chooses.
func TestController_DefaultSelectionAppliedOnce(t *testing.T) {
	t.Parallel()

	cards := &fakeCards{}
	ctl := &Controller{}
	ctl.Watch(cards)
	assert.Equal(t, SelectionNone, ctl.Selection())

	cards.setPrimary(&instruments.Instrument{ID: "card_1", IsPrimary: true})
	assert.Equal(t, SelectionPrimary, ctl.Selection())

	ctl.Select(SelectionNew)
	cards.setPrimary(&instruments.Instrument{ID: "card_2", IsPrimary: true})
	assert.Equal(t, SelectionNew, ctl.Selection())

	require.NoError(t, ctl.Close())
	assert.Empty(t, cards.subs)
}

// TestController_ExplicitChoiceBeatsDefault verifies a choice made before any primary sticks.
func TestController_ExplicitChoiceBeatsDefault(t *testing.T) {
	t.Parallel()

	cards := &fakeCards{}
	ctl := &Controller{}
	ctl.Select(SelectionNew)
	ctl.Watch(cards)
	t.Cleanup(func() { _ = ctl.Close() })

	cards.setPrimary(&instruments.Instrument{ID: "card_1", IsPrimary: true})
	assert.Equal(t, SelectionNew, ctl.Selection())
}

// TestController_WatchCache verifies the controller follows a real instruments cache.
func TestController_WatchCache(t *testing.T) {
	t.Parallel()

	cache := instruments.NewCache(nil)
	t.Cleanup(func() { _ = cache.Close() })

	ctl := &Controller{}
	ctl.Watch(cache)
	t.Cleanup(func() { _ = ctl.Close() })

	require.True(t, cache.Add(instruments.Instrument{ID: "card_1", Last4: "4242", IsPrimary: true}))
	assert.Equal(t, SelectionPrimary, ctl.Selection())
}

// TestController_MissingWiring verifies required collaborators are checked.
func TestController_MissingWiring(t *testing.T) {
	t.Parallel()

	_, err := (&Controller{}).Submit(context.Background(), Form{Email: "a@b.com"})
	assert.EqualError(t, err, `checkout: missing "Gate" wiring`)
}

type blockingGate struct {
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGate) GuardedInvoke(ctx context.Context, action challenge.Action) (challenge.Outcome, error) {
	close(g.entered)
	<-g.release
	return challenge.OutcomeInvoked, nil
}

// TestController_SubmitWhileSubmitting verifies a second submission is dropped.
func TestController_SubmitWhileSubmitting(t *testing.T) {
	t.Parallel()

	gate := &blockingGate{entered: make(chan struct{}), release: make(chan struct{})}
	ctl := &Controller{Gate: gate, Intent: &intent.Orchestrator{}, Confirmer: &fakeConfirmer{rec: &recorder{}}, Authenticated: true}

	done := make(chan error, 1)
	go func() {
		_, err := ctl.Submit(context.Background(), Form{PaymentMethodID: "pm_1"})
		done <- err
	}()
	<-gate.entered
	assert.True(t, ctl.Submitting())

	out, err := ctl.Submit(context.Background(), Form{PaymentMethodID: "pm_1"})
	require.NoError(t, err)
	assert.Equal(t, challenge.OutcomeBusy, out)

	close(gate.release)
	require.NoError(t, <-done)
	assert.False(t, ctl.Submitting())
}

// TestMessages_For verifies each error kind maps to its message.
func TestMessages_For(t *testing.T) {
	t.Parallel()

	m := DefaultMessages()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"challenge", &challenge.FailedError{}, m.ChallengeFailed},
		{"update", &RejectedError{Step: "update", Err: ErrUpdateRejected}, m.UpdateRejected},
		{"finalize", &RejectedError{Step: "finalize", Err: ErrFinalizeRejected}, m.FinalizeRejected},
		{"confirmation", &ConfirmationError{}, m.ConfirmationFailed},
		{"confirmation with processor text", &ConfirmationError{Code: "card_declined", Message: "Your card was declined."}, m.ConfirmationFailed},
		{"request", &api.RequestError{Path: "/x", StatusCode: 500}, m.RequestFailed},
		{"other", errors.New("x"), m.Generic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.For(tt.err))
		})
	}

	custom := Messages{EmailRequired: "E-Mail fehlt", ConfirmationFailed: "Karte abgelehnt"}.withDefaults()
	assert.Equal(t, "E-Mail fehlt", custom.EmailRequired)
	assert.Equal(t, "Karte abgelehnt", custom.For(&ConfirmationError{Message: "Your card was declined."}))
	assert.Equal(t, m.PaymentMethodRequired, custom.PaymentMethodRequired)
	assert.Equal(t, m.Generic, custom.Generic)
}
