package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lendkeeper/internal/analytics"
	"lendkeeper/internal/inventory"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Inventory and participation reports",
	}

	reportCmd.AddCommand(newReportInventoryCommand(ctx))
	reportCmd.AddCommand(newReportBreakdownCommand(ctx))
	reportCmd.AddCommand(newReportParticipationCommand(ctx))
	reportCmd.AddCommand(newReportNonParticipantsCommand(ctx))
	reportCmd.AddCommand(newReportMatrixCommand(ctx))

	return reportCmd
}

func newReportInventoryCommand(ctx *commandContext) *cobra.Command {
	var (
		typeName   string
		tagFilters []string
	)

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Totals and utilization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter inventory.Filter
			var err error
			if typeName != "" {
				if filter.Type, err = inventory.ParseResourceType(typeName); err != nil {
					return err
				}
			}
			if filter.Tags, err = parseTags(tagFilters); err != nil {
				return err
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				summary, err := svc.analytics.InventorySummary(c, filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:       %d\n", summary.Total)
				fmt.Fprintf(out, "Available:   %d\n", summary.Available)
				fmt.Fprintf(out, "Borrowed:    %d\n", summary.Borrowed)
				fmt.Fprintf(out, "Utilization: %s\n", formatPercent(summary.Utilization))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Only this resource type")
	cmd.Flags().StringArrayVar(&tagFilters, "tag", nil, "Classification filter dimension=value (repeatable)")
	return cmd
}

func newReportBreakdownCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "breakdown <dimension>",
		Short: "Counts and utilization per classification tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dim, err := inventory.ParseDimension(args[0])
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				rows, err := svc.analytics.ClassificationBreakdown(c, dim)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if rows == nil {
						rows = []analytics.Breakdown{}
					}
					return writeJSON(cmd, rows)
				}
				table := make([][]string, 0, len(rows))
				for _, row := range rows {
					table = append(table, []string{
						row.Tag,
						strconv.Itoa(row.Total),
						strconv.Itoa(row.Available),
						strconv.Itoa(row.Borrowed),
						formatPercent(row.Utilization),
					})
				}
				right := alignRight
				printTable(cmd, []string{"Tag", "Total", "Available", "Borrowed", "Utilization"}, table,
					[]columnAlignment{alignLeft, right, right, right, right}, "No resources found")
				return nil
			})
		},
	}
}

func newReportParticipationCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "participation [cohort]",
		Short: "Share of each cohort that has borrowed anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				var rows []analytics.Participation
				if len(args) == 1 {
					p, err := svc.analytics.Participation(c, args[0])
					if err != nil {
						return err
					}
					rows = []analytics.Participation{p}
				} else {
					var err error
					if rows, err = svc.analytics.ParticipationAll(c); err != nil {
						return err
					}
				}
				if ctx.jsonOutput() {
					if rows == nil {
						rows = []analytics.Participation{}
					}
					return writeJSON(cmd, rows)
				}
				table := make([][]string, 0, len(rows))
				for _, p := range rows {
					table = append(table, []string{
						p.CohortID,
						p.Name,
						strconv.Itoa(p.Members),
						strconv.Itoa(p.Participants),
						formatPercent(p.Rate),
						strconv.Itoa(p.TotalLoans),
						strconv.FormatFloat(p.AvgLoansPerParticipant, 'f', 2, 64),
					})
				}
				right := alignRight
				printTable(cmd, []string{"Cohort", "Name", "Members", "Borrowed", "Rate", "Loans", "Avg loans"}, table,
					[]columnAlignment{alignLeft, alignLeft, right, right, right, right, right}, "No cohorts in roster")
				return nil
			})
		},
	}
}

func newReportNonParticipantsCommand(ctx *commandContext) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "nonparticipants <cohort>",
		Short: "Cohort members who have never borrowed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				name := func(ref inventory.BorrowerRef) string {
					if svc.roster == nil {
						return ""
					}
					return svc.roster.Name(ref)
				}
				if by == "" {
					refs, err := svc.analytics.NonParticipants(c, args[0])
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, refs)
					}
					rows := make([][]string, 0, len(refs))
					for _, ref := range refs {
						rows = append(rows, []string{ref.String(), name(ref)})
					}
					printTable(cmd, []string{"Borrower", "Name"}, rows, nil, "Every member has borrowed")
					return nil
				}

				dim, err := inventory.ParseDimension(by)
				if err != nil {
					return err
				}
				groups, err := svc.analytics.NonParticipantsByTag(c, args[0], dim)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if groups == nil {
						groups = []analytics.TagNonParticipants{}
					}
					return writeJSON(cmd, groups)
				}
				rows := make([][]string, 0, len(groups))
				for _, g := range groups {
					names := make([]string, 0, len(g.Borrowers))
					for _, ref := range g.Borrowers {
						names = append(names, ref.ID)
					}
					rows = append(rows, []string{g.Tag, strconv.Itoa(len(g.Borrowers)), strings.Join(names, ", ")})
				}
				printTable(cmd, []string{"Tag", "Missing", "Borrowers"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft}, "No resources found")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "Report per tag of this classification dimension")
	return cmd
}

func newReportMatrixCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "matrix <dimension>",
		Short: "Loans per cohort and classification tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dim, err := inventory.ParseDimension(args[0])
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				matrix, err := svc.analytics.CohortTagMatrix(c, dim)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, matrix)
				}
				headers := append([]string{"Cohort"}, matrix.Tags...)
				headers = append(headers, "Total")
				aligns := make([]columnAlignment, len(headers))
				for i := 1; i < len(aligns); i++ {
					aligns[i] = alignRight
				}
				rows := make([][]string, 0, len(matrix.Rows))
				for _, r := range matrix.Rows {
					row := []string{r.CohortID}
					for _, tag := range matrix.Tags {
						row = append(row, strconv.Itoa(r.Loans[tag]))
					}
					rows = append(rows, append(row, strconv.Itoa(r.Total)))
				}
				printTable(cmd, headers, rows, aligns, "No loans recorded")
				return nil
			})
		},
	}
}
