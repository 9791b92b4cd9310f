package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/odm/internal/backend"
	"github.com/alfredjeanlab/odm/internal/client"
	"github.com/alfredjeanlab/odm/internal/config"
	"github.com/alfredjeanlab/odm/internal/odm"
	"github.com/alfredjeanlab/odm/internal/schemafile"
	"github.com/alfredjeanlab/odm/internal/store"
	"github.com/alfredjeanlab/odm/internal/ui"
)

// annotationNoClient marks commands that build their own connections.
const annotationNoClient = "odm/no-client"

var (
	serverURL   string
	storeURL    string
	schemaGlobs []string
	token       string
	jsonOutput  bool
	noColor     bool

	docClient client.DocumentClient
)

func defaultServerURL() string {
	return os.Getenv("ODM_SERVER")
}

var rootCmd = &cobra.Command{
	Use:           "odm <command>",
	Short:         "Validate and store schema-checked documents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.SetColor(false)
		}
		if cmd.Annotations[annotationNoClient] != "" {
			return nil
		}
		c, err := newDocumentClient(cmd.Context())
		if err != nil {
			return err
		}
		docClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if docClient != nil {
			docClient.Close()
			docClient = nil
		}
	},
}

// newDocumentClient talks to an odm server over HTTP when --server is set,
// and otherwise opens the store and schema files directly.
func newDocumentClient(ctx context.Context) (client.DocumentClient, error) {
	if serverURL != "" {
		return client.NewHTTPClient(serverURL, client.ResolveToken(token, serverURL)), nil
	}
	session, err := openSession(ctx)
	if err != nil {
		return nil, err
	}
	return client.NewLocal(session), nil
}

func openSession(ctx context.Context) (*odm.Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	patterns := schemaGlobs
	if len(patterns) == 0 {
		patterns = cfg.Schemas
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no schema files given (use --schemas or ODM_SCHEMAS)")
	}
	reg, _, err := schemafile.Load(patterns...)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	session, err := odm.NewSession(st, reg, odm.WithDepth(cfg.Depth))
	if err != nil {
		st.Close()
		return nil, err
	}
	return session, nil
}

func resolvedStoreURL(cfg *config.Config) string {
	if storeURL != "" {
		return storeURL
	}
	return cfg.StoreURL
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	u := resolvedStoreURL(cfg)
	return backend.Open(ctx, u, backend.Options{Token: client.ResolveToken(token, u)})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "odm HTTP server URL (default: open the store directly)")
	rootCmd.PersistentFlags().StringVar(&storeURL, "store", "", "store URL when running without --server (default $ODM_STORE_URL)")
	rootCmd.PersistentFlags().StringSliceVar(&schemaGlobs, "schemas", nil, "schema file globs when running without --server (default $ODM_SCHEMAS)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("ODM_TOKEN"), "bearer token (default: keyring)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "documents", Title: "Documents:"},
		&cobra.Group{ID: "schemas", Title: "Schemas:"},
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Documents
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(validateCmd)

	// Schemas
	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(schemaCmd)

	// Data
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
