package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/odm"
	"github.com/alfredjeanlab/odm/internal/ui"
)

// readDocument reads a JSON document from the file named by the optional
// argument, or from stdin when it is absent or "-".
func readDocument(args []string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty document")
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printDocument(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("formatting document: %w", err)
	}
	fmt.Fprintln(w, buf.String())
	return nil
}

// printValidation reports err as a list of failing fields. It returns err
// unchanged so callers can exit non-zero.
func printValidation(w io.Writer, err error) error {
	ve, ok := model.AsValidationError(err)
	if !ok {
		return err
	}
	if jsonOutput {
		if perr := printJSON(w, map[string]any{"valid": false, "fields": ve.Errors}); perr != nil {
			return perr
		}
		return err
	}
	fmt.Fprintln(w, ui.RenderFail("invalid"))
	for _, fe := range ve.Errors {
		fmt.Fprintf(w, "  %s  %s\n", ui.RenderField(fe.Field), fe.Message)
	}
	return err
}

func printSchemaList(w io.Writer, schemas []odm.SchemaInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCOLLECTION\tPARENT\tFIELDS")
	for _, s := range schemas {
		collection := s.Collection
		if s.Embedded {
			collection = "(embedded)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Name, collection, dash(s.Parent), len(s.Fields))
	}
	tw.Flush()
}

func printSchema(w io.Writer, s odm.SchemaInfo) {
	fmt.Fprintf(w, "%s %s\n", ui.RenderAccent(s.Name), ui.RenderMuted(schemaTraits(s)))
	if len(s.Subclasses) > 0 {
		fmt.Fprintf(w, "Subclasses: %s\n", strings.Join(s.Subclasses, ", "))
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tTYPE\tFLAGS")
	for _, f := range s.Fields {
		var flags []string
		if f.PrimaryKey {
			flags = append(flags, "primary key")
		}
		if f.Required {
			flags = append(flags, "required")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.Description, dash(strings.Join(flags, ", ")))
	}
	tw.Flush()
}

func schemaTraits(s odm.SchemaInfo) string {
	var traits []string
	switch {
	case s.Embedded:
		traits = append(traits, "embedded")
	default:
		traits = append(traits, "collection "+s.Collection)
	}
	if s.Parent != "" {
		traits = append(traits, "extends "+s.Parent)
	}
	if s.Dynamic {
		traits = append(traits, "dynamic")
	}
	return "(" + strings.Join(traits, ", ") + ")"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
