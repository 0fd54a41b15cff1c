package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lendkeeper/internal/inventory"
	"lendkeeper/internal/scan"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Register, inspect and edit lendable resources",
	}

	catalogCmd.AddCommand(newCatalogAddCommand(ctx))
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	catalogCmd.AddCommand(newCatalogFurnitureCommand(ctx))
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))
	catalogCmd.AddCommand(newCatalogEditCommand(ctx))
	catalogCmd.AddCommand(newCatalogRemoveCommand(ctx))
	catalogCmd.AddCommand(newCatalogCountsCommand(ctx))

	return catalogCmd
}

type classificationFlags struct {
	category          string
	subject           string
	classLevel        string
	furnitureCategory string
}

func (f *classificationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "Category tag")
	cmd.Flags().StringVar(&f.subject, "subject", "", "Subject tag")
	cmd.Flags().StringVar(&f.classLevel, "class-level", "", "Class level tag")
	cmd.Flags().StringVar(&f.furnitureCategory, "furniture-category", "", "Furniture category tag")
}

// apply overlays the flags the user actually set onto base.
func (f *classificationFlags) apply(cmd *cobra.Command, base inventory.Classification) (inventory.Classification, bool) {
	changed := false
	if cmd.Flags().Changed("category") {
		base.Category, changed = f.category, true
	}
	if cmd.Flags().Changed("subject") {
		base.Subject, changed = f.subject, true
	}
	if cmd.Flags().Changed("class-level") {
		base.ClassLevel, changed = f.classLevel, true
	}
	if cmd.Flags().Changed("furniture-category") {
		base.FurnitureCategory, changed = f.furnitureCategory, true
	}
	return base, changed
}

func newCatalogAddCommand(ctx *commandContext) *cobra.Command {
	var (
		typeName  string
		title     string
		condition string
		tags      classificationFlags
	)

	cmd := &cobra.Command{
		Use:   "add <code>",
		Short: "Register a resource",
		Long: "Register a resource by id or scanned code. A structured book label\n" +
			"(Class/Subject/Form/Count/Year) or furniture label ([Form/]LKR/Colour/Seq)\n" +
			"fills in classification tags.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				target, err := svc.resolver.Resolve(args[0])
				if err != nil {
					return err
				}
				if target.Kind != scan.KindResource {
					return &inventory.Error{Kind: inventory.KindValidation, Message: fmt.Sprintf("%q is not a resource code", args[0])}
				}
				if isFurnitureLabel(target.Label) && !cmd.Flags().Changed("type") {
					typeName = string(inventory.TypeFurniture)
				}
				resourceType, err := inventory.ParseResourceType(typeName)
				if err != nil {
					return err
				}
				res := inventory.Resource{ID: target.ResourceID, Type: resourceType, Title: title}
				if target.Label != nil {
					res.Classification = target.Label.Classification()
				}
				res.Classification, _ = tags.apply(cmd, res.Classification)
				if condition != "" {
					if res.Condition, err = inventory.ParseCondition(condition); err != nil {
						return err
					}
				}

				id, err := svc.catalog.Register(c, res)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					registered, err := svc.catalog.Get(c, id)
					if err != nil {
						return err
					}
					return writeJSON(cmd, registered)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", string(inventory.TypeStandard), "Resource type (standard, revision, furniture)")
	cmd.Flags().StringVar(&title, "title", "", "Title or description")
	cmd.Flags().StringVar(&condition, "condition", "", "Initial condition (default New)")
	tags.register(cmd)
	return cmd
}

// importDocument is the YAML layout accepted by catalog import.
type importDocument struct {
	Resources []importRow `yaml:"resources"`
}

type importRow struct {
	ID             string                   `yaml:"id"`
	Label          string                   `yaml:"label"`
	Type           string                   `yaml:"type"`
	Title          string                   `yaml:"title"`
	Condition      string                   `yaml:"condition"`
	Classification inventory.Classification `yaml:"classification"`
}

func (r importRow) resource(resolver *scan.Resolver) (inventory.Resource, error) {
	res := inventory.Resource{
		ID:             strings.TrimSpace(r.ID),
		Title:          r.Title,
		Classification: r.Classification,
	}
	if r.Label != "" {
		target, err := resolver.Resolve(r.Label)
		if err != nil {
			return inventory.Resource{}, err
		}
		if target.Kind != scan.KindResource {
			return inventory.Resource{}, &inventory.Error{Kind: inventory.KindValidation, Message: fmt.Sprintf("%q is not a resource code", r.Label)}
		}
		if res.ID == "" {
			res.ID = target.ResourceID
		}
		if target.Label != nil && res.Classification == (inventory.Classification{}) {
			res.Classification = target.Label.Classification()
		}
	}
	typeName := r.Type
	if typeName == "" {
		typeName = string(inventory.TypeStandard)
		if label, err := inventory.ParseLabel(res.ID); err == nil && isFurnitureLabel(label) {
			typeName = string(inventory.TypeFurniture)
		}
	}
	var err error
	if res.Type, err = inventory.ParseResourceType(typeName); err != nil {
		return inventory.Resource{}, err
	}
	if r.Condition != "" {
		if res.Condition, err = inventory.ParseCondition(r.Condition); err != nil {
			return inventory.Resource{}, err
		}
	}
	return res, nil
}

func isFurnitureLabel(label inventory.Label) bool {
	_, ok := label.(inventory.FurnitureLabel)
	return ok
}

func readImportFile(path string) (importDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return importDocument{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	var doc importDocument
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return importDocument{}, &inventory.Error{Kind: inventory.KindValidation, Message: "parse import file", Err: err}
	}
	return doc, nil
}

type importOutcome struct {
	Row        int    `json:"row"`
	ResourceID string `json:"resource_id"`
	Status     string `json:"status"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Message    string `json:"message,omitempty"`
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Register many resources from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				outcomes := make([]importOutcome, len(doc.Resources))
				var (
					valid    []inventory.Resource
					validRow []int
				)
				for i, row := range doc.Resources {
					outcomes[i] = importOutcome{Row: i + 1, ResourceID: row.ID}
					res, err := row.resource(svc.resolver)
					if err != nil {
						outcomes[i].Status = "failed"
						outcomes[i].ErrorKind = string(inventory.KindOf(err))
						outcomes[i].Message = err.Error()
						continue
					}
					valid = append(valid, res)
					validRow = append(validRow, i)
				}
				for j, outcome := range svc.catalog.RegisterMany(c, valid) {
					o := &outcomes[validRow[j]]
					o.ResourceID = outcome.ResourceID
					if outcome.Err != nil {
						o.Status = "failed"
						o.ErrorKind = string(inventory.KindOf(outcome.Err))
						o.Message = outcome.Err.Error()
						continue
					}
					o.Status = "registered"
				}

				failed := 0
				for _, o := range outcomes {
					if o.Status != "registered" {
						failed++
					}
				}

				if ctx.jsonOutput() {
					if err := writeJSON(cmd, outcomes); err != nil {
						return err
					}
				} else {
					rows := make([][]string, 0, len(outcomes))
					for _, o := range outcomes {
						rows = append(rows, []string{strconv.Itoa(o.Row), o.ResourceID, o.Status, o.Message})
					}
					printTable(cmd, []string{"Row", "Resource", "Status", "Detail"}, rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}, "Import file has no resources")
					fmt.Fprintf(cmd.OutOrStdout(), "Registered %d of %d resources\n", len(outcomes)-failed, len(outcomes))
				}
				if failed > 0 {
					return &inventory.Error{
						Kind:    inventory.KindPartialBulkFailure,
						Message: fmt.Sprintf("%d of %d resources were not registered", failed, len(outcomes)),
					}
				}
				return nil
			})
		},
	}
}

func newCatalogFurnitureCommand(ctx *commandContext) *cobra.Command {
	var (
		form      string
		count     int
		title     string
		condition string
	)

	cmd := &cobra.Command{
		Use:   "furniture <LKR|CHR> <colour>",
		Short: "Register the next labels of a locker or chair series",
		Long: "Register count new furniture items labelled [Form/]Kind/Colour/Seq, numbered\n" +
			"after the highest sequence already in the catalog for that series.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := inventory.ParseFurnitureKind(args[0])
			if err != nil {
				return err
			}
			var initial inventory.Condition
			if condition != "" {
				if initial, err = inventory.ParseCondition(condition); err != nil {
					return err
				}
			}
			series := inventory.FurnitureLabel{Form: strings.TrimSpace(form), Kind: kind, Colour: strings.TrimSpace(args[1])}

			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				labels, err := svc.catalog.NextFurnitureLabels(c, series, count)
				if err != nil {
					return err
				}
				resources := make([]inventory.Resource, len(labels))
				for i, label := range labels {
					resources[i] = inventory.Resource{
						ID:             label.String(),
						Type:           inventory.TypeFurniture,
						Title:          title,
						Condition:      initial,
						Classification: label.Classification(),
					}
				}

				outcomes := make([]importOutcome, len(resources))
				failed := 0
				for i, outcome := range svc.catalog.RegisterMany(c, resources) {
					outcomes[i] = importOutcome{Row: i + 1, ResourceID: outcome.ResourceID, Status: "registered"}
					if outcome.Err != nil {
						failed++
						outcomes[i].Status = "failed"
						outcomes[i].ErrorKind = string(inventory.KindOf(outcome.Err))
						outcomes[i].Message = outcome.Err.Error()
					}
				}

				if ctx.jsonOutput() {
					if err := writeJSON(cmd, outcomes); err != nil {
						return err
					}
				} else {
					for _, o := range outcomes {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", o.ResourceID, o.Status)
					}
				}
				if failed > 0 {
					return &inventory.Error{
						Kind:    inventory.KindPartialBulkFailure,
						Message: fmt.Sprintf("%d of %d furniture labels were not registered", failed, len(outcomes)),
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&form, "form", "", "Form prefix for class-assigned furniture")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of items to register")
	cmd.Flags().StringVar(&title, "title", "", "Description applied to every item")
	cmd.Flags().StringVar(&condition, "condition", "", "Initial condition (default New)")
	return cmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var (
		typeName   string
		condition  string
		available  bool
		borrowed   bool
		tagFilters []string
		orderBy    string
		descending bool
		limit      uint
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if available && borrowed {
				return &inventory.Error{Kind: inventory.KindValidation, Message: "--available and --borrowed are mutually exclusive"}
			}
			filter := inventory.Filter{
				OrderBy:    inventory.OrderField(orderBy),
				Descending: descending,
				Limit:      limit,
			}
			var err error
			if typeName != "" {
				if filter.Type, err = inventory.ParseResourceType(typeName); err != nil {
					return err
				}
			}
			if condition != "" {
				if filter.Condition, err = inventory.ParseCondition(condition); err != nil {
					return err
				}
			}
			if available || borrowed {
				value := available
				filter.Available = &value
			}
			if filter.Tags, err = parseTags(tagFilters); err != nil {
				return err
			}

			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				var resources []inventory.Resource
				for res, err := range svc.catalog.List(c, filter) {
					if err != nil {
						return err
					}
					resources = append(resources, res)
				}
				if ctx.jsonOutput() {
					if resources == nil {
						resources = []inventory.Resource{}
					}
					return writeJSON(cmd, resources)
				}
				rows := make([][]string, 0, len(resources))
				for _, res := range resources {
					rows = append(rows, []string{
						res.ID,
						string(res.Type),
						res.Title,
						classificationSummary(res.Classification),
						string(res.Condition),
						yesNo(res.Available),
					})
				}
				printTable(cmd, []string{"ID", "Type", "Title", "Classification", "Condition", "Available"}, rows, nil, "No resources found")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Filter by resource type")
	cmd.Flags().StringVar(&condition, "condition", "", "Filter by condition")
	cmd.Flags().BoolVar(&available, "available", false, "Only resources on the shelf")
	cmd.Flags().BoolVar(&borrowed, "borrowed", false, "Only resources on loan")
	cmd.Flags().StringArrayVar(&tagFilters, "tag", nil, "Classification filter dimension=value (repeatable)")
	cmd.Flags().StringVar(&orderBy, "order", string(inventory.OrderByID), "Sort by id, title, updated_at or condition")
	cmd.Flags().BoolVar(&descending, "desc", false, "Sort descending")
	cmd.Flags().UintVar(&limit, "limit", 0, "Maximum rows (0 for all)")
	return cmd
}

type resourceDetail struct {
	Resource inventory.Resource       `json:"resource"`
	OpenLoan *inventory.LendingRecord `json:"open_loan,omitempty"`
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <code>",
		Short: "Show a resource and its current loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				id, err := svc.resolver.ResolveResource(args[0])
				if err != nil {
					return err
				}
				res, err := svc.catalog.Get(c, id)
				if err != nil {
					return err
				}
				open, err := svc.ledger.OpenRecordFor(c, id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resourceDetail{Resource: res, OpenLoan: open})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:             %s\n", res.ID)
				fmt.Fprintf(out, "Type:           %s\n", res.Type)
				if res.Title != "" {
					fmt.Fprintf(out, "Title:          %s\n", res.Title)
				}
				if summary := classificationSummary(res.Classification); summary != "" {
					fmt.Fprintf(out, "Classification: %s\n", summary)
				}
				fmt.Fprintf(out, "Condition:      %s\n", res.Condition)
				fmt.Fprintf(out, "Available:      %s\n", yesNo(res.Available))
				if open != nil {
					fmt.Fprintf(out, "On loan to:     %s (due %s)\n", open.Borrower, formatTime(open.DueAt))
				}
				return nil
			})
		},
	}
}

func newCatalogEditCommand(ctx *commandContext) *cobra.Command {
	var (
		title     string
		condition string
		tags      classificationFlags
	)

	cmd := &cobra.Command{
		Use:   "edit <code>",
		Short: "Edit title, classification or condition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				id, err := svc.resolver.ResolveResource(args[0])
				if err != nil {
					return err
				}
				current, err := svc.catalog.Get(c, id)
				if err != nil {
					return err
				}
				var edit inventory.Edit
				if cmd.Flags().Changed("title") {
					edit.Title = &title
				}
				if cmd.Flags().Changed("condition") {
					parsed, err := inventory.ParseCondition(condition)
					if err != nil {
						return err
					}
					edit.Condition = &parsed
				}
				if merged, changed := tags.apply(cmd, current.Classification); changed {
					edit.Classification = &merged
				}
				if edit.Title == nil && edit.Condition == nil && edit.Classification == nil {
					return &inventory.Error{Kind: inventory.KindValidation, ResourceID: id, Message: "nothing to edit"}
				}

				updated, err := svc.catalog.UpdateDetails(c, id, edit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, updated)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", updated.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&condition, "condition", "", "New condition")
	tags.register(cmd)
	return cmd
}

func newCatalogRemoveCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "remove <code>",
		Short: "Remove a resource and its lending history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				id, err := svc.resolver.ResolveResource(args[0])
				if err != nil {
					return err
				}
				if err := svc.catalog.Remove(c, id, inventory.RemoveOptions{Force: force}); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"removed": id, "forced": force})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Remove even while on loan, discarding the open record")
	return cmd
}

func newCatalogCountsCommand(ctx *commandContext) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Count resources, optionally per classification tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				if by == "" {
					counts, err := svc.catalog.Counts(c, inventory.Filter{})
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, counts)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Total: %d  Available: %d  Borrowed: %d\n",
						counts.Total, counts.Available, counts.Borrowed)
					return nil
				}
				dim, err := inventory.ParseDimension(by)
				if err != nil {
					return err
				}
				rows, err := svc.catalog.CountsBy(c, dim, inventory.Filter{})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rows)
				}
				table := make([][]string, 0, len(rows))
				for _, row := range rows {
					table = append(table, []string{
						row.Tag,
						strconv.Itoa(row.Total),
						strconv.Itoa(row.Available),
						strconv.Itoa(row.Borrowed),
					})
				}
				printTable(cmd, []string{"Tag", "Total", "Available", "Borrowed"}, table,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}, "No resources found")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "Group by dimension (category, subject, class_level, furniture_category)")
	return cmd
}
