package sync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/multierr"

	"github.com/alfredjeanlab/odm/internal/idgen"
	"github.com/alfredjeanlab/odm/internal/store"
)

// FormatVersion is written to every export header.
const FormatVersion = "1"

const (
	lineHeader = "header"
	lineRecord = "record"

	// maxLine bounds a single JSONL line on import.
	maxLine = 16 << 20
)

// Header is the first line of an export.
type Header struct {
	Version     string         `json:"version"`
	Type        string         `json:"type"`
	ExportID    string         `json:"export_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Collections map[string]int `json:"collections"`
}

// Total returns the number of records the export holds.
func (h *Header) Total() int {
	n := 0
	for _, c := range h.Collections {
		n += c
	}
	return n
}

// line is every line after the header. Record is relaxed extended JSON.
type line struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	Record     json.RawMessage `json:"record"`
}

// ErrNoHeader is returned by Import when the input does not start with an
// export header.
var ErrNoHeader = errors.New("export has no header line")

// Export writes the named collections, or every collection when none are
// given, as JSONL to w: one header line, then one line per record with
// collections and keys in order.
func Export(ctx context.Context, st store.Store, w io.Writer, collections ...string) (*Header, error) {
	if len(collections) == 0 {
		var err error
		if collections, err = st.Collections(ctx); err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
	}
	collections = append([]string(nil), collections...)
	sort.Strings(collections)

	id, err := idgen.ExportID()
	if err != nil {
		return nil, fmt.Errorf("generate export id: %w", err)
	}
	h := &Header{
		Version:     FormatVersion,
		Type:        lineHeader,
		ExportID:    id,
		Timestamp:   time.Now().UTC(),
		Collections: make(map[string]int, len(collections)),
	}

	records := make(map[string][]store.Record, len(collections))
	for _, c := range collections {
		recs, err := st.List(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", c, err)
		}
		records[c] = recs
		h.Collections[c] = len(recs)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	for _, c := range collections {
		for _, rec := range records[c] {
			data, err := store.MarshalExtJSON(rec)
			if err != nil {
				return nil, fmt.Errorf("encode %s record: %w", c, err)
			}
			if err := enc.Encode(line{Type: lineRecord, Collection: c, Record: data}); err != nil {
				return nil, fmt.Errorf("write %s record: %w", c, err)
			}
		}
	}
	return h, nil
}

// ImportResult summarizes an Import.
type ImportResult struct {
	Header   *Header
	Imported int
	Failed   int
}

// Import reads an export from r and upserts every record under its stored
// key. Bad lines are skipped; their errors are combined into the returned
// error. A missing or malformed header aborts the import.
func Import(ctx context.Context, st store.Store, r io.Reader) (*ImportResult, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, ErrNoHeader
	}
	var h Header
	if err := json.Unmarshal(sc.Bytes(), &h); err != nil || h.Type != lineHeader {
		return nil, ErrNoHeader
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported export version %q", h.Version)
	}

	res := &ImportResult{Header: &h}
	var errs error
	n := 1
	for sc.Scan() {
		n++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, multierr.Append(errs, err)
		}
		if err := importLine(ctx, st, sc.Bytes()); err != nil {
			res.Failed++
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", n, err))
			continue
		}
		res.Imported++
	}
	if err := sc.Err(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("read line %d: %w", n+1, err))
	}
	return res, errs
}

func importLine(ctx context.Context, st store.Store, data []byte) error {
	var l line
	if err := json.Unmarshal(data, &l); err != nil {
		return err
	}
	if l.Type != lineRecord || l.Collection == "" {
		return fmt.Errorf("unexpected line type %q", l.Type)
	}
	rec, err := store.UnmarshalExtJSON(l.Record)
	if err != nil {
		return err
	}
	key, ok := rec[store.KeyField]
	if !ok {
		return fmt.Errorf("%s record has no %s", l.Collection, store.KeyField)
	}
	delete(rec, store.KeyField)
	_, err = st.Upsert(ctx, l.Collection, key, rec)
	return err
}
