package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/alfredjeanlab/odm/internal/config"
	"github.com/alfredjeanlab/odm/internal/store"
	odmsync "github.com/alfredjeanlab/odm/internal/sync"
	"github.com/alfredjeanlab/odm/internal/ui"
)

var dropYes bool

var dropCmd = &cobra.Command{
	Use:     "drop <schema>",
	Short:   "Delete every document in a schema's collection",
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dropYes {
			return errors.New("refusing to drop without --yes")
		}
		if err := docClient.Drop(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("dropping %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s\n", args[0])
		return nil
	},
}

var (
	exportOut         string
	exportCollections []string
	exportS3Bucket    string
)

var exportCmd = &cobra.Command{
	Use:         "export",
	Short:       "Write the store's records as JSON lines",
	GroupID:     "data",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoClient: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, err := storeFromConfig(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if exportS3Bucket != "" {
			dest, err := odmsync.NewS3Destination(cmd.Context(), exportS3Bucket, cfg.SyncS3Prefix, cfg.SyncS3Region, cfg.SyncS3Endpoint)
			if err != nil {
				return err
			}
			return exportTo(cmd, st, func(data []byte) error {
				return dest.Write(cmd.Context(), odmsync.SnapshotName, data)
			}, dest.String())
		}
		if exportOut == "" || exportOut == "-" {
			h, err := odmsync.Export(cmd.Context(), st, cmd.OutOrStdout(), exportCollections...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderMuted(fmt.Sprintf("exported %d records (%s)", h.Total(), h.ExportID)))
			return nil
		}
		dest := odmsync.NewDirDestination(filepath.Dir(exportOut))
		return exportTo(cmd, st, func(data []byte) error {
			return dest.Write(cmd.Context(), filepath.Base(exportOut), data)
		}, exportOut)
	},
}

func exportTo(cmd *cobra.Command, st store.Store, write func([]byte) error, target string) error {
	var buf bytes.Buffer
	h, err := odmsync.Export(cmd.Context(), st, &buf, exportCollections...)
	if err != nil {
		return err
	}
	if err := write(buf.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", h.Total(), target)
	return nil
}

var importCmd = &cobra.Command{
	Use:         "import [file]",
	Short:       "Load records written by export (reads stdin without a file)",
	GroupID:     "data",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationNoClient: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		st, _, err := storeFromConfig(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := odmsync.Import(cmd.Context(), st, r)
		if res == nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			if perr := printJSON(w, map[string]any{"export_id": res.Header.ExportID, "imported": res.Imported, "failed": res.Failed}); perr != nil {
				return perr
			}
		} else {
			fmt.Fprintf(w, "Imported %d records", res.Imported)
			if res.Failed > 0 {
				fmt.Fprintf(w, ", %s", ui.RenderFail(fmt.Sprintf("%d failed", res.Failed)))
			}
			fmt.Fprintln(w)
		}
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderMuted(e.Error()))
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d records failed to import", res.Failed)
		}
		return err
	},
}

func storeFromConfig(cmd *cobra.Command) (store.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

func init() {
	dropCmd.Flags().BoolVar(&dropYes, "yes", false, "confirm dropping the collection")

	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "file to write (default stdout)")
	exportCmd.Flags().StringSliceVar(&exportCollections, "collection", nil, "collections to export (default all)")
	exportCmd.Flags().StringVar(&exportS3Bucket, "s3-bucket", "", "upload the export to this S3 bucket")
}
