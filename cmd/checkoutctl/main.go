package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uafrontender/newnew-sub010/checkout"
	"github.com/uafrontender/newnew-sub010/config"
	"github.com/uafrontender/newnew-sub010/logging"
	"github.com/uafrontender/newnew-sub010/processor"
)

// cli holds what every subcommand shares once PersistentPreRunE ran.
type cli struct {
	configPath string
	verbose    bool

	cfg config.Config
	log *zap.Logger

	// newConfirmer is swapped in tests.
	newConfirmer func(cfg config.Config, log *zap.Logger) (checkout.Confirmer, error)
}

func stripeConfirmer(cfg config.Config, log *zap.Logger) (checkout.Confirmer, error) {
	return processor.NewStripeConfirmer(processor.Config{SecretKey: cfg.StripeSecretKey, Log: log})
}

func newRootCmd() *cobra.Command {
	return (&cli{newConfirmer: stripeConfirmer}).rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "checkoutctl",
		Short: "Drive NewNew checkouts and saved cards from the terminal",
		Long: `checkoutctl runs the checkout core against the platform API: it creates a
setup intent, passes the bot check, confirms with the processor and finalizes.

Configuration comes from --config (YAML) and NEWNEW_* / STRIPE_SECRET_KEY
environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if c.verbose {
				level = "debug"
			}
			log, err := logging.New(logging.Options{Production: cfg.Production(), Level: level, Env: cfg.Env})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg, c.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.checkoutCmd(),
		c.cardsCmd(),
		c.listenCmd(),
		c.returnURLCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
