package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uafrontender/newnew-sub010/instruments"
	"github.com/uafrontender/newnew-sub010/push"
)

func (c *cli) listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Print card status pushes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.PushURL == "" {
				return errors.New("NEWNEW_PUSH_URL must be set")
			}
			sess, err := c.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			off := sess.hub().On(push.EventCardStatusChanged, func(_ context.Context, ev push.Event) {
				msg, err := instruments.UnmarshalCardStatusChanged(ev.Payload)
				if err != nil {
					return
				}
				if msg.Card == nil {
					fmt.Fprintf(out, "%s\n", msg.Status)
					return
				}
				fmt.Fprintf(out, "%s %s %s %s\n", msg.Status, msg.Card.ID, msg.Card.Brand, msg.Card.Last4)
			})
			defer off()

			stop := sess.listen(cmd.Context())
			<-cmd.Context().Done()
			stop()
			return nil
		},
	}
}
