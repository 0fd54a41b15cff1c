package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lendkeeper/internal/analytics"
	"lendkeeper/internal/bulk"
	"lendkeeper/internal/config"
	"lendkeeper/internal/fines"
	"lendkeeper/internal/inventory"
	"lendkeeper/internal/logging"
	"lendkeeper/internal/overdue"
	"lendkeeper/internal/registry"
	"lendkeeper/internal/scan"
	"lendkeeper/internal/storage"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool
	actorFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool, actorFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		actorFlag:  actorFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		// A .env file next to the working directory may carry LENDKEEPER_*
		// overrides; its absence is normal.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.configErr = fmt.Errorf("load .env: %w", err)
			return
		}
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) actor() string {
	if c.actorFlag != nil {
		if actor := strings.TrimSpace(*c.actorFlag); actor != "" {
			return actor
		}
	}
	return strings.TrimSpace(os.Getenv("USER"))
}

// services is the wired engine for one command invocation.
type services struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *storage.Store
	catalog   *inventory.Catalog
	ledger    *inventory.Ledger
	fines     *fines.Calculator
	bulk      *bulk.Coordinator
	overdue   *overdue.Scanner
	analytics *analytics.Aggregator
	roster    *registry.Roster
	resolver  *scan.Resolver
}

// withServices opens the store, wires the engine and runs fn with a context
// carrying a fresh correlation id and the acting operator.
func (c *commandContext) withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	var roster *registry.Roster
	if cfg.Paths.RosterFile != "" {
		roster, err = registry.LoadFile(cfg.Paths.RosterFile)
		if err != nil {
			return err
		}
	}

	opts := []inventory.Option{inventory.WithLogger(logger)}
	if cfg.Ledger.ValidateBorrowers && roster != nil {
		opts = append(opts, inventory.WithBorrowerRegistry(roster))
	}
	calc := fines.New(cfg.Fines)
	catalog := inventory.NewCatalog(store, opts...)
	ledger := inventory.NewLedger(store, catalog, calc, cfg, opts...)

	var cohorts analytics.CohortSource
	if roster != nil {
		cohorts = roster
	}
	svc := &services{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		catalog:   catalog,
		ledger:    ledger,
		fines:     calc,
		bulk:      bulk.NewCoordinator(store, ledger, cfg.Bulk, bulk.WithLogger(logger)),
		overdue:   overdue.NewScanner(ledger, calc, logger),
		analytics: analytics.New(catalog, ledger, cohorts, logger),
		roster:    roster,
		resolver:  scan.NewResolver(),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	ctx = logging.WithActor(ctx, c.actor())
	return fn(ctx, svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
