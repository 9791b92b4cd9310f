package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var schemasCmd = &cobra.Command{
	Use:     "schemas",
	Short:   "List the defined schemas",
	GroupID: "schemas",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemas, err := docClient.Schemas(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing schemas: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), schemas)
		}
		printSchemaList(cmd.OutOrStdout(), schemas)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:     "schema <name>",
	Short:   "Describe a schema and its fields",
	GroupID: "schemas",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemas, err := docClient.Schemas(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing schemas: %w", err)
		}
		for _, s := range schemas {
			if s.Name != args[0] {
				continue
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), s)
			}
			printSchema(cmd.OutOrStdout(), s)
			return nil
		}
		return fmt.Errorf("unknown schema %q", args[0])
	},
}
