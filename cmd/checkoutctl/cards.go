package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/uafrontender/newnew-sub010/instruments"
)

func (c *cli) cardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage saved cards (requires NEWNEW_AUTH_TOKEN)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved cards",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withCards(cmd.Context(), func(ctx context.Context, cache *instruments.Cache) error {
					printCards(cmd.OutOrStdout(), cache.Items())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "primary [card-uuid]",
			Short: "Make a card the primary one",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withCards(cmd.Context(), func(ctx context.Context, cache *instruments.Cache) error {
					if err := cache.SetPrimary(ctx, args[0]); err != nil {
						return err
					}
					printCards(cmd.OutOrStdout(), cache.Items())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove [card-uuid]",
			Short: "Delete a saved card",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withCards(cmd.Context(), func(ctx context.Context, cache *instruments.Cache) error {
					if err := cache.Remove(ctx, args[0]); err != nil {
						return err
					}
					printCards(cmd.OutOrStdout(), cache.Items())
					return nil
				})
			},
		},
	)
	return cmd
}

// withCards opens a session, loads the cards and runs fn.
func (c *cli) withCards(ctx context.Context, fn func(context.Context, *instruments.Cache) error) error {
	sess, err := c.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	cache, err := sess.cards()
	if err != nil {
		return err
	}
	if _, err := cache.Fetch(ctx); err != nil {
		return err
	}
	return fn(ctx, cache)
}

func printCards(w io.Writer, items []instruments.Instrument) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no saved cards")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIMARY\tUUID\tBRAND\tLAST4\tEXPIRES")
	for _, it := range items {
		mark := ""
		if it.IsPrimary {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%02d/%d\n", mark, it.ID, it.Brand, it.Last4, it.ExpMonth, it.ExpYear)
	}
	_ = tw.Flush()
}
