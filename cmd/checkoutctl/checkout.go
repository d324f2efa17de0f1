package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uafrontender/newnew-sub010/challenge"
	"github.com/uafrontender/newnew-sub010/checkout"
	"github.com/uafrontender/newnew-sub010/instruments"
	"github.com/uafrontender/newnew-sub010/intent"
	"github.com/uafrontender/newnew-sub010/logging"
	"github.com/uafrontender/newnew-sub010/scope"
)

const keyController scope.Key = "checkout.controller"

type checkoutFlags struct {
	purpose   string
	creator   string
	post      string
	option    string
	votes     int
	amount    string
	currency  string
	bidText   string
	rewardAmt string

	email         string
	saveCard      bool
	paymentMethod string
	newCard       bool

	challengeToken string
	visibleToken   string
	wait           time.Duration
}

func (c *cli) checkoutCmd() *cobra.Command {
	f := &checkoutFlags{}
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Run one checkout attempt",
		Long: `Creates a setup intent, runs the bot check and pays either with the
primary saved card or with --payment-method.

Guests (no NEWNEW_AUTH_TOKEN) must pass --email. When the invisible check
asks for the visible challenge, pass its token with --visible-token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheckout(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.purpose, "purpose", string(intent.PurposeCardSetup), "subscription, one_time, bid, vote or card_setup")
	fl.StringVar(&f.creator, "creator", "", "creator uuid")
	fl.StringVar(&f.post, "post", "", "post uuid")
	fl.StringVar(&f.option, "option", "", "vote option id")
	fl.IntVar(&f.votes, "votes", 0, "votes count")
	fl.StringVar(&f.amount, "amount", "", "amount, e.g. 5.00")
	fl.StringVar(&f.currency, "currency", "usd", "currency code")
	fl.StringVar(&f.bidText, "bid-text", "", "bid text")
	fl.StringVar(&f.rewardAmt, "reward-amount", "", "reward balance to apply")
	fl.StringVar(&f.email, "email", "", "guest email")
	fl.BoolVar(&f.saveCard, "save-card", false, "save the new card")
	fl.StringVar(&f.paymentMethod, "payment-method", "", "processor payment method id for a new card")
	fl.BoolVar(&f.newCard, "new-card", false, "do not use the primary saved card")
	fl.StringVar(&f.challengeToken, "challenge-token", "", "invisible challenge token")
	fl.StringVar(&f.visibleToken, "visible-token", "", "visible challenge token")
	fl.DurationVar(&f.wait, "wait", 0, "wait this long for the card status push after saving")
	return cmd
}

func (f *checkoutFlags) factory() intent.RequestFactory {
	return func() (intent.CreateRequest, error) {
		req := intent.CreateRequest{
			Purpose:     intent.Purpose(f.purpose),
			CreatorUUID: f.creator,
			PostUUID:    f.post,
			OptionID:    f.option,
			VotesCount:  f.votes,
			Currency:    f.currency,
			BidText:     f.bidText,
		}
		if f.amount != "" {
			d, err := decimal.NewFromString(f.amount)
			if err != nil {
				return intent.CreateRequest{}, fmt.Errorf("invalid --amount %q: %w", f.amount, err)
			}
			req.Amount = decimal.NewNullDecimal(d)
		}
		return req, nil
	}
}

func (c *cli) runCheckout(ctx context.Context, out io.Writer, f *checkoutFlags) error {
	sess, err := c.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	log := logging.Named(c.log, "checkout")
	cards, err := sess.cards()
	if err != nil {
		return err
	}
	authenticated := sess.client.Authenticated()
	if authenticated {
		if _, err := cards.Fetch(ctx); err != nil {
			log.Warn("could not load saved cards, continuing with a new card", zap.Error(err))
		}
	}

	orch := intent.New(intent.NewHTTPBackend(sess.client), f.factory(), intent.WithLogger(logging.Named(c.log, "intent")))
	if _, _, err := orch.Initialize(ctx); err != nil {
		return err
	}

	if f.rewardAmt != "" {
		d, err := decimal.NewFromString(f.rewardAmt)
		if err != nil {
			return fmt.Errorf("invalid --reward-amount %q: %w", f.rewardAmt, err)
		}
		st, err := orch.Update(ctx, intent.UpdateOptions{RewardAmount: decimal.NewNullDecimal(d)})
		if err != nil {
			return err
		}
		if !st.OK() {
			return &checkout.RejectedError{Step: "update", Status: st, Err: checkout.ErrUpdateRejected}
		}
	}

	verifier := challenge.NewHTTPVerifier(sess.client, c.cfg.Challenge.InvisiblePath, c.cfg.Challenge.VisiblePath)
	verifier.Log = logging.Named(c.log, "challenge")
	gate := challenge.NewGate(challenge.Config{
		Action:             c.cfg.Challenge.Action,
		MinSuccessScore:    c.cfg.Challenge.MinSuccessScore,
		Environment:        c.cfg.Env,
		BypassEnvironments: c.cfg.Challenge.BypassEnvironments,
	},
		challenge.TokenProviderFunc(func(context.Context, string) (string, error) { return f.challengeToken, nil }),
		verifier,
		challenge.WithLogger(logging.Named(c.log, "challenge")),
	)

	confirmer, err := c.newConfirmer(c.cfg, logging.Named(c.log, "processor"))
	if err != nil {
		return err
	}

	ctl := &checkout.Controller{
		Gate:          gate,
		Intent:        orch,
		Confirmer:     confirmer,
		Notifier:      checkout.LogNotifier{Log: log},
		Log:           log,
		Authenticated: authenticated,
		ReturnURL:     c.cfg.ReturnURL,
	}
	if f.newCard {
		ctl.Select(checkout.SelectionNew)
	}
	ctl.Watch(cards)
	if err := scope.Provide(sess.scope, keyController, ctl); err != nil {
		return errors.Join(err, ctl.Close())
	}

	var watcher *instruments.SetupWatcher
	if f.wait > 0 && f.saveCard {
		stop := sess.listen(ctx)
		defer stop()
		watcher = instruments.WatchSetup(sess.hub(), logging.Named(c.log, "setup"))
		defer watcher.Stop()
	}

	form := checkout.Form{Email: f.email, SaveCard: f.saveCard, PaymentMethodID: f.paymentMethod}
	outcome, err := ctl.Submit(ctx, form)
	if err == nil && outcome == challenge.OutcomeVisibleRequired && f.visibleToken != "" {
		gate.SetVisibleToken(f.visibleToken)
		outcome, err = ctl.Submit(ctx, form)
	}
	if err != nil {
		var ce *checkout.ConfirmationError
		if errors.As(err, &ce) && ce.RedirectURL != "" {
			fmt.Fprintf(out, "authentication required, open:\n  %s\n", ce.RedirectURL)
		}
		return err
	}

	switch outcome {
	case challenge.OutcomeVisibleRequired:
		fmt.Fprintln(out, "visible challenge required: rerun with --visible-token")
		return nil
	case challenge.OutcomeBusy:
		fmt.Fprintln(out, "another submission is in flight")
		return nil
	}
	fmt.Fprintf(out, "checkout complete (%s, attempt %s)\n", outcome, orch.AttemptID())

	if watcher != nil {
		wctx, cancel := context.WithTimeout(ctx, f.wait)
		defer cancel()
		ev, err := watcher.Wait(wctx)
		if err != nil {
			fmt.Fprintln(out, "no card status received")
			return nil
		}
		fmt.Fprintf(out, "card status: %s\n", ev.Status)
	}
	return nil
}
