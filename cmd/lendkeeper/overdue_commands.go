package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lendkeeper/internal/overdue"
)

func newOverdueCommand(ctx *commandContext) *cobra.Command {
	overdueCmd := &cobra.Command{
		Use:   "overdue",
		Short: "Report loans past their due date",
	}

	overdueCmd.AddCommand(newOverdueListCommand(ctx))
	overdueCmd.AddCommand(newOverdueBucketsCommand(ctx))

	return overdueCmd
}

func resolveAsOf(value string) (time.Time, error) {
	asOf, err := parseInstant(value)
	if err != nil {
		return time.Time{}, err
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return asOf, nil
}

func newOverdueListCommand(ctx *commandContext) *cobra.Command {
	var asOfFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List overdue loans, most overdue first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := resolveAsOf(asOfFlag)
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				entries, err := svc.overdue.Entries(c, asOf)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if entries == nil {
						entries = []overdue.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.Record.ResourceID,
						e.Record.Borrower.String(),
						formatTime(e.Record.DueAt),
						strconv.Itoa(e.DaysLate),
						formatMoney(e.AccruedLateFee),
					})
				}
				printTable(cmd, []string{"Resource", "Borrower", "Due", "Days late", "Late fee"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}, "No overdue loans")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "Evaluate lateness at this date (default now)")
	return cmd
}

func newOverdueBucketsCommand(ctx *commandContext) *cobra.Command {
	var (
		asOfFlag string
		edges    []int
	)

	cmd := &cobra.Command{
		Use:   "buckets",
		Short: "Count overdue loans per lateness bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := resolveAsOf(asOfFlag)
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				if !cmd.Flags().Changed("edges") {
					edges = svc.cfg.Overdue.BucketEdgesDays
				}
				counts, err := svc.overdue.GroupByLateness(c, asOf, overdue.BucketsFromEdges(edges))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, counts)
				}
				rows := make([][]string, 0, len(counts))
				for _, bc := range counts {
					rows = append(rows, []string{bc.Label, strconv.Itoa(bc.Count)})
				}
				printTable(cmd, []string{"Days late", "Loans"}, rows,
					[]columnAlignment{alignLeft, alignRight}, "No buckets")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "Evaluate lateness at this date (default now)")
	cmd.Flags().IntSliceVar(&edges, "edges", nil, "Ascending bucket upper edges in days (default from config)")
	return cmd
}
