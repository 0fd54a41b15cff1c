package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lendkeeper/internal/inventory"
)

func newLendCommand(ctx *commandContext) *cobra.Command {
	lendCmd := &cobra.Command{
		Use:   "lend",
		Short: "Borrow and return resources",
	}

	lendCmd.AddCommand(newLendBorrowCommand(ctx))
	lendCmd.AddCommand(newLendReturnCommand(ctx))
	lendCmd.AddCommand(newLendHistoryCommand(ctx))
	lendCmd.AddCommand(newLendOpenCommand(ctx))
	lendCmd.AddCommand(newLendBorrowerCommand(ctx))
	lendCmd.AddCommand(newLendRecordCommand(ctx))

	return lendCmd
}

func newLendBorrowCommand(ctx *commandContext) *cobra.Command {
	var (
		days int
		note string
	)

	cmd := &cobra.Command{
		Use:   "borrow <resource-code> <borrower-code>",
		Short: "Lend a resource to a student or teacher",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return &inventory.Error{Kind: inventory.KindValidation, Message: "--days must not be negative"}
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				resourceID, err := svc.resolver.ResolveResource(args[0])
				if err != nil {
					return err
				}
				borrower, err := svc.resolver.ResolveBorrower(args[1])
				if err != nil {
					return err
				}
				record, err := svc.ledger.Borrow(c, inventory.BorrowRequest{
					ResourceID: resourceID,
					Borrower:   borrower,
					LoanPeriod: time.Duration(days) * 24 * time.Hour,
					LentBy:     ctx.actor(),
					Note:       note,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, record)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Lent %s to %s, due %s (record %s)\n",
					record.ResourceID, record.Borrower, formatTime(record.DueAt), record.ULID)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Loan period in days (default per resource type)")
	cmd.Flags().StringVar(&note, "note", "", "Note stored on the record")
	return cmd
}

func newLendReturnCommand(ctx *commandContext) *cobra.Command {
	var (
		condition    string
		borrowerCode string
		note         string
	)

	cmd := &cobra.Command{
		Use:   "return <resource-code>",
		Short: "Record the return of a resource and compute its fine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				resourceID, err := svc.resolver.ResolveResource(args[0])
				if err != nil {
					return err
				}
				req := inventory.ReturnRequest{
					ResourceID: resourceID,
					Condition:  inventory.Condition(condition),
					Actor:      ctx.actor(),
					Note:       note,
				}
				if borrowerCode != "" {
					if req.Borrower, err = svc.resolver.ResolveBorrower(borrowerCode); err != nil {
						return err
					}
				}
				record, err := svc.ledger.Return(c, req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, record)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Returned %s from %s in %s condition; fine %s\n",
					record.ResourceID, record.Borrower, record.ReturnCondition, formatMoney(record.FineMinor))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&condition, "condition", "", "Condition on return (New, Good, Fair, Damaged, Lost)")
	cmd.Flags().StringVar(&borrowerCode, "borrower", "", "Borrower returning the resource, checked against the loan")
	cmd.Flags().StringVar(&note, "note", "", "Note stored on the record")
	_ = cmd.MarkFlagRequired("condition")
	return cmd
}

func printRecords(cmd *cobra.Command, ctx *commandContext, records []inventory.LendingRecord, emptyMessage string) error {
	if ctx.jsonOutput() {
		if records == nil {
			records = []inventory.LendingRecord{}
		}
		return writeJSON(cmd, records)
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordRow(r))
	}
	printTable(cmd, recordHeaders, rows, recordAligns, emptyMessage)
	return nil
}

func newLendHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <resource-code>",
		Short: "Show the lending history of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				resourceID, err := svc.resolver.ResolveResource(args[0])
				if err != nil {
					return err
				}
				if _, err := svc.catalog.Get(c, resourceID); err != nil {
					return err
				}
				var records []inventory.LendingRecord
				for rec, err := range svc.ledger.HistoryFor(c, resourceID) {
					if err != nil {
						return err
					}
					records = append(records, rec)
				}
				return printRecords(cmd, ctx, records, "No lending history")
			})
		},
	}
}

func newLendOpenCommand(ctx *commandContext) *cobra.Command {
	var (
		kind  string
		limit uint
	)

	cmd := &cobra.Command{
		Use:   "open",
		Short: "List resources currently on loan, earliest due first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := inventory.OpenFilter{Limit: limit}
			if kind != "" {
				parsed, err := inventory.ParseBorrowerKind(kind)
				if err != nil {
					return err
				}
				filter.BorrowerKind = parsed
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				var records []inventory.LendingRecord
				for rec, err := range svc.ledger.OpenRecords(c, filter) {
					if err != nil {
						return err
					}
					records = append(records, rec)
				}
				return printRecords(cmd, ctx, records, "Nothing is on loan")
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only student or teacher loans")
	cmd.Flags().UintVar(&limit, "limit", 0, "Maximum rows (0 for all)")
	return cmd
}

type borrowerSummary struct {
	Borrower inventory.BorrowerRef     `json:"borrower"`
	Name     string                    `json:"name,omitempty"`
	Cohort   string                    `json:"cohort,omitempty"`
	Records  []inventory.LendingRecord `json:"records"`
}

func newLendBorrowerCommand(ctx *commandContext) *cobra.Command {
	var openOnly bool

	cmd := &cobra.Command{
		Use:   "borrower <borrower-code>",
		Short: "Show what a borrower has taken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				ref, err := svc.resolver.ResolveBorrower(args[0])
				if err != nil {
					return err
				}
				summary := borrowerSummary{Borrower: ref, Records: []inventory.LendingRecord{}}
				if svc.roster != nil {
					summary.Name = svc.roster.Name(ref)
					cohort, ok, err := svc.roster.CohortOf(c, ref)
					if err != nil {
						return err
					}
					if ok {
						summary.Cohort = cohort
					}
				}
				for rec, err := range svc.ledger.BorrowerHistory(c, ref, openOnly) {
					if err != nil {
						return err
					}
					summary.Records = append(summary.Records, rec)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				header := ref.String()
				if summary.Name != "" {
					header += " (" + summary.Name + ")"
				}
				if summary.Cohort != "" {
					header += " in " + summary.Cohort
				}
				fmt.Fprintln(out, header)
				return printRecords(cmd, ctx, summary.Records, "No loans")
			})
		},
	}

	cmd.Flags().BoolVar(&openOnly, "open", false, "Only loans not yet returned")
	return cmd
}

func newLendRecordCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "record <record-id>",
		Short: "Show one lending record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				rec, err := svc.ledger.GetRecord(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Record:    %s\n", rec.ULID)
				fmt.Fprintf(out, "Resource:  %s\n", rec.ResourceID)
				fmt.Fprintf(out, "Borrower:  %s\n", rec.Borrower)
				fmt.Fprintf(out, "Status:    %s\n", recordStatus(rec))
				fmt.Fprintf(out, "Borrowed:  %s\n", formatTime(rec.BorrowedAt))
				fmt.Fprintf(out, "Due:       %s\n", formatTime(rec.DueAt))
				if !rec.Open() {
					fmt.Fprintf(out, "Returned:  %s (%s)\n", formatOptionalTime(rec.ReturnedAt), rec.ReturnCondition)
					fmt.Fprintf(out, "Fine:      %s\n", formatMoney(rec.FineMinor))
				}
				if rec.LentBy != "" {
					fmt.Fprintf(out, "Lent by:   %s\n", rec.LentBy)
				}
				if rec.ReturnedBy != "" {
					fmt.Fprintf(out, "Taken by:  %s\n", rec.ReturnedBy)
				}
				if rec.Note != "" {
					fmt.Fprintf(out, "Note:      %s\n", rec.Note)
				}
				return nil
			})
		},
	}
}
