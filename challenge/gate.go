package challenge

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// TokenProvider issues invisible-challenge tokens for an action name.
type TokenProvider interface {
	Token(ctx context.Context, action string) (string, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context, action string) (string, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token(ctx context.Context, action string) (string, error) {
	return f(ctx, action)
}

// Verifier checks challenge tokens against the backend.
type Verifier interface {
	VerifyInvisible(ctx context.Context, token string) (Result, error)
	VerifyVisible(ctx context.Context, token string) (bool, error)
}

// Action is the protected operation.
type Action func(ctx context.Context) error

// Config tunes a Gate.
type Config struct {
	// Action is the name passed to the token provider (e.g. "checkout").
	Action string

	// MinSuccessScore defaults to DefaultMinSuccessScore when zero.
	MinSuccessScore float64

	// Environment is the current deployment environment.
	Environment string

	// BypassEnvironments lists environments where verification is skipped.
	BypassEnvironments []string
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// Gate runs the two-tier bot check in front of an action.
//
// States: NORMAL until an invisible check fails, then VISIBLE_REQUIRED until a
// visible token passes. A rejected visible token keeps the gate in
// VISIBLE_REQUIRED.
type Gate struct {
	cfg      Config
	provider TokenProvider
	verifier Verifier
	log      *zap.Logger

	submitting atomic.Bool

	mu              sync.Mutex
	visibleRequired bool
	visibleToken    string
}

// NewGate builds a Gate. provider may be nil, in which case every invisible
// check reports ErrProviderUnavailable.
func NewGate(cfg Config, provider TokenProvider, verifier Verifier, opts ...Option) *Gate {
	if cfg.MinSuccessScore <= 0 {
		cfg.MinSuccessScore = DefaultMinSuccessScore
	}
	if cfg.Action == "" {
		cfg.Action = "submit"
	}
	g := &Gate{cfg: cfg, provider: provider, verifier: verifier, log: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// VisibleChallengeRequired reports whether the caller must render the visible widget.
func (g *Gate) VisibleChallengeRequired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.visibleRequired
}

// SetVisibleToken records the token produced by the visible widget.
func (g *Gate) SetVisibleToken(token string) {
	g.mu.Lock()
	g.visibleToken = token
	g.mu.Unlock()
}

// Submitting reports whether an invocation is in flight.
func (g *Gate) Submitting() bool { return g.submitting.Load() }

// ExecuteInvisibleCheck obtains an invisible token and verifies it.
func (g *Gate) ExecuteInvisibleCheck(ctx context.Context) (Result, error) {
	if g.provider == nil {
		return Result{}, ErrProviderUnavailable
	}
	token, err := g.provider.Token(ctx, g.cfg.Action)
	if err != nil {
		return Result{}, err
	}
	if token == "" {
		return Result{}, ErrProviderUnavailable
	}
	return g.verifier.VerifyInvisible(ctx, token)
}

// ExecuteVisibleCheck verifies a visible-widget token.
func (g *Gate) ExecuteVisibleCheck(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}
	return g.verifier.VerifyVisible(ctx, token)
}

// GuardedInvoke runs action once the caller has been judged human.
//
// Concurrent calls while one is in flight return OutcomeBusy immediately.
func (g *Gate) GuardedInvoke(ctx context.Context, action Action) (Outcome, error) {
	if action == nil {
		return 0, ErrNilAction
	}
	if !g.submitting.CompareAndSwap(false, true) {
		g.log.Debug("guarded invoke dropped, submission in flight")
		return OutcomeBusy, nil
	}
	defer g.submitting.Store(false)

	if g.bypassed() {
		g.log.Debug("challenge bypassed", zap.String("env", g.cfg.Environment))
		return OutcomeBypassed, action(ctx)
	}

	g.mu.Lock()
	required, token := g.visibleRequired, g.visibleToken
	g.mu.Unlock()

	if required && token != "" {
		return g.invokeAfterVisible(ctx, token, action)
	}

	res, err := g.ExecuteInvisibleCheck(ctx)
	if err != nil {
		g.log.Warn("invisible check failed", zap.Error(err))
	}
	if err == nil && res.PassedWith(g.cfg.MinSuccessScore) {
		return OutcomeInvoked, action(ctx)
	}

	fields := []zap.Field{zap.Bool("passed", res.Passed)}
	if res.Score != nil {
		fields = append(fields, zap.Float64("score", *res.Score))
	}
	if len(res.ErrorCodes) > 0 {
		fields = append(fields, zap.String("error_codes", joinCodes(res.ErrorCodes)))
	}
	g.log.Info("escalating to visible challenge", fields...)

	g.mu.Lock()
	g.visibleRequired = true
	g.mu.Unlock()
	return OutcomeVisibleRequired, nil
}

func (g *Gate) invokeAfterVisible(ctx context.Context, token string, action Action) (Outcome, error) {
	passed, err := g.ExecuteVisibleCheck(ctx, token)

	g.mu.Lock()
	// a token is single use either way
	if g.visibleToken == token {
		g.visibleToken = ""
	}
	if err == nil && passed {
		g.visibleRequired = false
	}
	g.mu.Unlock()

	if err != nil && !IsFailed(err) {
		g.log.Warn("visible check errored", zap.Error(err))
		return OutcomeVisibleRequired, err
	}
	if !passed {
		if err == nil {
			err = &FailedError{}
		}
		g.log.Info("visible check rejected", zap.Error(err))
		return OutcomeVisibleRequired, err
	}
	return OutcomeInvoked, action(ctx)
}

func (g *Gate) bypassed() bool {
	if g.cfg.Environment == "" {
		return false
	}
	for _, env := range g.cfg.BypassEnvironments {
		if env == g.cfg.Environment {
			return true
		}
	}
	return false
}
