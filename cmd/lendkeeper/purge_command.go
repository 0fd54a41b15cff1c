package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lendkeeper/internal/inventory"
)

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete lending records returned before a date",
		Long:  "Delete closed lending records returned before --before. Open loans are never purged.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoff, err := parseInstant(before)
			if err != nil {
				return err
			}
			if cutoff.IsZero() {
				return &inventory.Error{Kind: inventory.KindValidation, Message: "--before is required"}
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				purged, err := svc.ledger.Purge(c, cutoff)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"purged": purged, "before": cutoff})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d lending records returned before %s\n", purged, cutoff.Format(dateLayout))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "Cutoff date (YYYY-MM-DD or RFC 3339)")
	return cmd
}
