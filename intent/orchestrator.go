package intent

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State of a single checkout attempt. Transitions only move forward.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateFinalized
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateFinalized:
		return "finalized"
	default:
		return "invalid"
	}
}

// UpdateRequest is what Update sends to the backend.
type UpdateRequest struct {
	SetupIntentClientSecret string
	UpdateOptions
}

// FinalizeRequest is what Finalize sends to the backend.
type FinalizeRequest struct {
	SetupIntentClientSecret string
	Options                 FinalizeOptions
}

// Backend is the platform API that holds setup intents.
// attemptID is meant as an idempotency key. It identifies one Orchestrator
// call: the first call of each kind carries the bare attempt id, later calls
// of the same kind get a ".<n>" suffix so a retry with a new payload is not
// answered from the backend's replay cache.
type Backend interface {
	CreateSetupIntent(ctx context.Context, attemptID string, req CreateRequest) (CreateResponse, error)
	UpdateSetupIntent(ctx context.Context, attemptID string, req UpdateRequest) (Status, error)
	FinalizeSetupIntent(ctx context.Context, attemptID string, req FinalizeRequest) (Status, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithAttemptID overrides the generated attempt id.
func WithAttemptID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.attemptID = id
		}
	}
}

// Orchestrator owns one checkout attempt against the processor's setup-intent
// API. It is single use: create a new one per attempt.
//
// Calls are serialized; a call made while another is in flight waits for it.
type Orchestrator struct {
	backend    Backend
	newRequest RequestFactory
	log        *zap.Logger
	attemptID  string

	mu        sync.Mutex
	state     State
	token     string
	updates   int
	finalizes int
}

// New builds an Orchestrator for one attempt.
func New(backend Backend, factory RequestFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:    backend,
		newRequest: factory,
		log:        zap.NewNop(),
		attemptID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With(zap.String("attempt_id", o.attemptID))
	return o
}

// Rehydrate rebuilds an INITIALIZED Orchestrator from a token issued earlier,
// typically read back from the processor's return URL. It cannot Initialize.
func Rehydrate(backend Backend, token string, opts ...Option) (*Orchestrator, error) {
	if token == "" {
		return nil, ErrNotInitialized
	}
	o := New(backend, nil, opts...)
	o.token = token
	o.state = StateInitialized
	return o, nil
}

// AttemptID identifies this attempt.
func (o *Orchestrator) AttemptID() string { return o.attemptID }

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Token returns the processor token issued on Initialize.
func (o *Orchestrator) Token() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.token, o.token != ""
}

// Initialize creates the processor-side setup intent and stores its token.
func (o *Orchestrator) Initialize(ctx context.Context) (Status, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateFinalized:
		return StatusUnknown, "", &StateError{Op: "initialize", State: o.state, Err: ErrAlreadyFinalized}
	case StateInitialized:
		return StatusUnknown, "", &StateError{Op: "initialize", State: o.state, Err: ErrAlreadyInitialized}
	}
	if o.newRequest == nil {
		return StatusUnknown, "", ErrNilFactory
	}

	req, err := o.newRequest()
	if err != nil {
		return StatusUnknown, "", err
	}

	resp, err := o.backend.CreateSetupIntent(ctx, o.attemptID, req)
	if err != nil {
		o.log.Warn("create setup intent failed", zap.Error(err))
		return StatusUnknown, "", err
	}
	if !resp.Status.OK() || resp.SetupIntentClientSecret == "" {
		o.log.Warn("create setup intent unusable", zap.String("status", string(resp.Status)))
		return resp.Status, "", ErrUnusableResponse
	}

	o.token = resp.SetupIntentClientSecret
	o.state = StateInitialized
	o.log.Debug("setup intent initialized", zap.String("purpose", string(req.Purpose)))
	return resp.Status, o.token, nil
}

// Update sends guest email, save-card preference and reward amount to the
// backend-held setup intent.
func (o *Orchestrator) Update(ctx context.Context, opts UpdateOptions) (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.checkReady("update"); err != nil {
		return StatusUnknown, err
	}

	key := o.requestKey(&o.updates)
	status, err := o.backend.UpdateSetupIntent(ctx, key, UpdateRequest{
		SetupIntentClientSecret: o.token,
		UpdateOptions:           opts,
	})
	if err != nil {
		o.log.Warn("update setup intent failed", zap.Error(err))
		return StatusUnknown, err
	}
	o.log.Debug("setup intent updated", zap.String("status", string(status)))
	return status, nil
}

// Finalize commits the attempt. The Orchestrator becomes FINALIZED only when
// the backend reports success; a failed finalize may be retried.
func (o *Orchestrator) Finalize(ctx context.Context, opts FinalizeOptions) (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.checkReady("finalize"); err != nil {
		return StatusUnknown, err
	}
	if !opts.Valid() {
		return StatusUnknown, ErrConflictingOptions
	}

	key := o.requestKey(&o.finalizes)
	status, err := o.backend.FinalizeSetupIntent(ctx, key, FinalizeRequest{
		SetupIntentClientSecret: o.token,
		Options:                 opts,
	})
	if err != nil {
		o.log.Warn("finalize setup intent failed", zap.Error(err))
		return StatusUnknown, err
	}
	if status.OK() {
		o.state = StateFinalized
	}
	o.log.Info("setup intent finalize", zap.String("status", string(status)), zap.Int("kind", int(opts.Kind())))
	return status, nil
}

// requestKey returns the idempotency key for the next call counted by n and
// advances n. It must be called with o.mu held.
func (o *Orchestrator) requestKey(n *int) string {
	*n++
	if *n == 1 {
		return o.attemptID
	}
	return o.attemptID + "." + strconv.Itoa(*n)
}

// checkReady must be called with o.mu held.
func (o *Orchestrator) checkReady(op string) error {
	switch {
	case o.state == StateFinalized:
		return &StateError{Op: op, State: o.state, Err: ErrAlreadyFinalized}
	case o.state != StateInitialized || o.token == "":
		return &StateError{Op: op, State: o.state, Err: ErrNotInitialized}
	}
	return nil
}
