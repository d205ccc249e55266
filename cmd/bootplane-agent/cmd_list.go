package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nls90/bootplane/pkg/agent"
)

func newListCmd(apiURL, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List logical units waiting in the modified state",
		Long: `List every logical unit the control plane reports as modified, the
queue the mount command works through.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), apiURL, configPath)
		},
	}
}

func runList(ctx context.Context, apiURL, configPath *string) error {
	cfg, err := loadConfig(apiURL, configPath)
	if err != nil {
		return err
	}
	client, err := agent.NewClient(cfg.APIBaseURL)
	if err != nil {
		return err
	}

	units, err := client.ModifiedLogicalUnits(ctx)
	if err != nil {
		return fmt.Errorf("query control plane: %w", err)
	}
	if len(units) == 0 {
		colorMuted.Println("No modified logical units")
		return nil
	}

	renderUnitTable(units)
	return nil
}
