package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lendkeeper/internal/preflight"
	"lendkeeper/internal/storage"
)

type doctorCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, roster and database health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			c := cmd.Context()
			if c == nil {
				c = context.Background()
			}

			results := preflight.RunAll(c, cfg)
			store, err := storage.Open(cfg)
			if err != nil {
				results = append(results, preflight.Result{Name: "Database", Detail: fmt.Sprintf("%s (error: %v)", cfg.DatabasePath(), err)})
			} else {
				results = append(results, preflight.CheckDatabase(c, store))
				_ = store.Close()
			}

			if ctx.jsonOutput() {
				checks := make([]doctorCheck, len(results))
				for i, r := range results {
					checks[i] = doctorCheck(r)
				}
				if err := writeJSON(cmd, checks); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := "ok"
					if !r.Passed {
						status = "FAIL"
					}
					rows = append(rows, []string{r.Name, status, r.Detail})
				}
				printTable(cmd, []string{"Check", "Status", "Detail"}, rows, nil, "No checks ran")
			}
			if preflight.Failed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}
