package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lendkeeper/internal/bulk"
	"lendkeeper/internal/config"
	"lendkeeper/internal/inventory"
	"lendkeeper/internal/scan"
)

func newBulkCommand(ctx *commandContext) *cobra.Command {
	bulkCmd := &cobra.Command{
		Use:   "bulk",
		Short: "Run and inspect bulk borrow or return batches",
	}

	bulkCmd.AddCommand(newBulkRunCommand(ctx, bulk.KindBorrow))
	bulkCmd.AddCommand(newBulkRunCommand(ctx, bulk.KindReturn))
	bulkCmd.AddCommand(newBulkShowCommand(ctx))
	bulkCmd.AddCommand(newBulkListCommand(ctx))

	return bulkCmd
}

// bulkDocument is the YAML layout accepted by bulk borrow and bulk return.
// Resource and borrower accept any scannable code.
type bulkDocument struct {
	Items []bulkRow `yaml:"items"`
}

type bulkRow struct {
	Resource  string `yaml:"resource"`
	Borrower  string `yaml:"borrower"`
	Days      int    `yaml:"days"`
	Condition string `yaml:"condition"`
	Note      string `yaml:"note"`
}

func readBulkFile(path string) ([]bulkRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()
	var doc bulkDocument
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &inventory.Error{Kind: inventory.KindValidation, Message: "parse batch file", Err: err}
	}
	return doc.Items, nil
}

func rowError(row int, err error) error {
	return &inventory.Error{Kind: inventory.KindValidation, Message: fmt.Sprintf("item %d", row+1), Err: err}
}

func borrowItems(resolver *scan.Resolver, rows []bulkRow) ([]bulk.BorrowItem, error) {
	items := make([]bulk.BorrowItem, len(rows))
	for i, row := range rows {
		resourceID, err := resolver.ResolveResource(row.Resource)
		if err != nil {
			return nil, rowError(i, err)
		}
		borrower, err := resolver.ResolveBorrower(row.Borrower)
		if err != nil {
			return nil, rowError(i, err)
		}
		if row.Days < 0 {
			return nil, rowError(i, errors.New("days must not be negative"))
		}
		items[i] = bulk.BorrowItem{
			ResourceID: resourceID,
			Borrower:   borrower,
			LoanPeriod: time.Duration(row.Days) * 24 * time.Hour,
			Note:       row.Note,
		}
	}
	return items, nil
}

func returnItems(resolver *scan.Resolver, rows []bulkRow) ([]bulk.ReturnItem, error) {
	items := make([]bulk.ReturnItem, len(rows))
	for i, row := range rows {
		resourceID, err := resolver.ResolveResource(row.Resource)
		if err != nil {
			return nil, rowError(i, err)
		}
		items[i] = bulk.ReturnItem{
			ResourceID: resourceID,
			Condition:  inventory.Condition(row.Condition),
			Note:       row.Note,
		}
		if row.Borrower != "" {
			if items[i].Borrower, err = resolver.ResolveBorrower(row.Borrower); err != nil {
				return nil, rowError(i, err)
			}
		}
	}
	return items, nil
}

func newBulkRunCommand(ctx *commandContext, kind bulk.Kind) *cobra.Command {
	var (
		workers int
		policy  string
	)

	short := "Borrow every item in a YAML batch file"
	if kind == bulk.KindReturn {
		short = "Return every item in a YAML batch file"
	}

	cmd := &cobra.Command{
		Use:   string(kind) + " <file.yaml>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readBulkFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				settings := svc.cfg.Bulk
				if cmd.Flags().Changed("workers") {
					if workers < 1 {
						return &inventory.Error{Kind: inventory.KindValidation, Message: "--workers must be at least 1"}
					}
					settings.Workers = workers
				}
				if cmd.Flags().Changed("policy") {
					switch policy {
					case config.BulkPolicyBestEffort, config.BulkPolicyStopOnFailure:
						settings.Policy = policy
					default:
						return &inventory.Error{Kind: inventory.KindValidation, Message: fmt.Sprintf("unknown bulk policy %q", policy)}
					}
				}
				coordinator := svc.bulk
				if settings != svc.cfg.Bulk {
					coordinator = bulk.NewCoordinator(svc.store, svc.ledger, settings, bulk.WithLogger(svc.logger))
				}

				var result bulk.Result
				switch kind {
				case bulk.KindBorrow:
					items, err := borrowItems(svc.resolver, rows)
					if err != nil {
						return err
					}
					result, err = coordinator.ExecuteBorrow(c, ctx.actor(), items)
					if err != nil {
						return err
					}
				default:
					items, err := returnItems(svc.resolver, rows)
					if err != nil {
						return err
					}
					result, err = coordinator.ExecuteReturn(c, ctx.actor(), items)
					if err != nil {
						return err
					}
				}

				if err := printBatch(cmd, ctx, result); err != nil {
					return err
				}
				return result.Err()
			})
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent workers (default from config)")
	cmd.Flags().StringVar(&policy, "policy", "", "best_effort or stop_on_failure (default from config)")
	return cmd
}

func printBatch(cmd *cobra.Command, ctx *commandContext, result bulk.Result) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, result)
	}
	rows := make([][]string, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		detail := o.RecordULID
		if !o.Success() {
			detail = o.Message
		}
		rows = append(rows, []string{
			strconv.Itoa(o.Index + 1),
			o.ResourceID,
			o.Borrower.String(),
			string(o.Status),
			string(o.ErrorKind),
			detail,
		})
	}
	printTable(cmd, []string{"#", "Resource", "Borrower", "Status", "Error", "Detail"}, rows,
		[]columnAlignment{alignRight}, "Batch has no items")
	fmt.Fprintf(cmd.OutOrStdout(), "Batch %s (%s): %d attempted, %d succeeded, %d failed, %d skipped\n",
		result.BatchID, result.Kind, result.Attempted, result.Succeeded, result.Failed, result.Skipped)
	return nil
}

func newBulkShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show a recorded batch and its item outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				result, err := svc.bulk.GetBatch(c, args[0])
				if err != nil {
					return err
				}
				return printBatch(cmd, ctx, result)
			})
		},
	}
}

func newBulkListCommand(ctx *commandContext) *cobra.Command {
	var limit uint

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				batches, err := svc.bulk.ListBatches(c, limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if batches == nil {
						batches = []bulk.Result{}
					}
					return writeJSON(cmd, batches)
				}
				rows := make([][]string, 0, len(batches))
				for _, b := range batches {
					rows = append(rows, []string{
						b.BatchID,
						string(b.Kind),
						b.Initiator,
						formatTime(b.CreatedAt),
						strconv.Itoa(b.Attempted),
						strconv.Itoa(b.Succeeded),
						strconv.Itoa(b.Failed),
						strconv.Itoa(b.Skipped),
					})
				}
				right := alignRight
				printTable(cmd, []string{"Batch", "Kind", "By", "Created", "Attempted", "Succeeded", "Failed", "Skipped"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, right, right, right, right}, "No batches recorded")
				return nil
			})
		},
	}

	cmd.Flags().UintVar(&limit, "limit", 20, "Maximum batches (0 for all)")
	return cmd
}
