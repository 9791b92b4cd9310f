package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/odm/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the server or store is reachable",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := docClient.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			styled := ui.RenderPass(status)
			if status != "ok" {
				styled = ui.RenderFail(status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", styled)
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
