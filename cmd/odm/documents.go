package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/odm/internal/ui"
)

var saveCmd = &cobra.Command{
	Use:     "save <schema> [file]",
	Short:   "Validate and save a JSON document (reads stdin without a file)",
	GroupID: "documents",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[1:], cmd.InOrStdin())
		if err != nil {
			return err
		}
		saved, err := docClient.Save(cmd.Context(), args[0], doc)
		if err != nil {
			return printValidation(cmd.OutOrStdout(), err)
		}
		return printDocument(cmd.OutOrStdout(), saved)
	},
}

var validateCmd = &cobra.Command{
	Use:     "validate <schema> [file]",
	Short:   "Check a JSON document against a schema without saving it",
	GroupID: "documents",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[1:], cmd.InOrStdin())
		if err != nil {
			return err
		}
		if err := docClient.Validate(cmd.Context(), args[0], doc); err != nil {
			return printValidation(cmd.OutOrStdout(), err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]bool{"valid": true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderPass("valid"))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:     "get <schema> <key>",
	Short:   "Show a stored document",
	GroupID: "documents",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := docClient.Get(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("getting %s %s: %w", args[0], args[1], err)
		}
		return printDocument(cmd.OutOrStdout(), doc)
	},
}

var listCmd = &cobra.Command{
	Use:     "list <schema>",
	Short:   "List the documents of a schema",
	GroupID: "documents",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := docClient.List(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("listing %s: %w", args[0], err)
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			if docs == nil {
				docs = []json.RawMessage{}
			}
			return printJSON(w, docs)
		}
		for _, d := range docs {
			fmt.Fprintln(w, string(d))
		}
		fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("%d documents", len(docs))))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <schema> <key>",
	Short:   "Delete a stored document",
	GroupID: "documents",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := docClient.Delete(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("deleting %s %s: %w", args[0], args[1], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[1]})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", args[0], args[1])
		return nil
	},
}
