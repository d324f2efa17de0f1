package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uafrontender/newnew-sub010/checkout"
	"github.com/uafrontender/newnew-sub010/intent"
	"github.com/uafrontender/newnew-sub010/logging"
)

func (c *cli) returnURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "return-url",
		Short: "Build or resume processor return URLs",
	}

	var saveCard bool
	build := &cobra.Command{
		Use:   "build",
		Short: "Print the configured return URL with save_card set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := checkout.BuildReturnURL(c.cfg.ReturnURL, saveCard)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
	build.Flags().BoolVar(&saveCard, "save-card", false, "save the card after confirmation")

	var email string
	resume := &cobra.Command{
		Use:   "resume [url]",
		Short: "Finalize the checkout the processor redirected back to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := checkout.ParseReturnURL(args[0])
			if err != nil {
				return err
			}
			sess, err := c.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			st, err := checkout.Resume(cmd.Context(), intent.NewHTTPBackend(sess.client), p, email,
				intent.WithLogger(logging.Named(c.log, "intent")))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "finalized: %s (save_card=%t)\n", st, p.SaveCard)
			return nil
		},
	}
	resume.Flags().StringVar(&email, "email", "", "guest email")

	cmd.AddCommand(build, resume)
	return cmd
}
