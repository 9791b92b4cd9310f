package sync

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/multierr"

	"github.com/alfredjeanlab/odm/internal/store"
	"github.com/alfredjeanlab/odm/internal/store/memory"
)

func seededStore(t *testing.T) *memory.MemoryStore {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	puts := []struct {
		coll string
		key  any
		rec  store.Record
	}{
		{"user", "bob", store.Record{"name": "Bob"}},
		{"user", "ada", store.Record{"name": "Ada", "joined": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}},
		{"post", int64(1), store.Record{"title": "Hi", "author": map[string]any{"$ref": "user", "$id": "ada"}}},
	}
	for _, p := range puts {
		if _, err := st.Upsert(ctx, p.coll, p.key, p.rec); err != nil {
			t.Fatalf("seed %s: %v", p.coll, err)
		}
	}
	return st
}

func TestExport_Empty(t *testing.T) {
	var buf bytes.Buffer
	h, err := Export(context.Background(), memory.New(), &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected header only, got %d lines", len(lines))
	}
	var got Header
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if got.Version != FormatVersion || got.Type != "header" || got.Total() != 0 {
		t.Fatalf("unexpected header: %+v", got)
	}
	if got.ExportID == "" || got.ExportID != h.ExportID {
		t.Fatalf("expected export id %q, got %q", h.ExportID, got.ExportID)
	}
}

func TestExport_OrderAndContent(t *testing.T) {
	var buf bytes.Buffer
	h, err := Export(context.Background(), seededStore(t), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.Collections["user"] != 2 || h.Collections["post"] != 1 || h.Total() != 3 {
		t.Fatalf("unexpected counts: %v", h.Collections)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	var order []string
	for _, l := range lines[1:] {
		var parsed line
		if err := json.Unmarshal([]byte(l), &parsed); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		rec, err := store.UnmarshalExtJSON(parsed.Record)
		if err != nil {
			t.Fatalf("record is not extended JSON: %v", err)
		}
		key, err := store.KeyString(rec[store.KeyField])
		if err != nil {
			t.Fatal(err)
		}
		order = append(order, parsed.Collection+"/"+key)
	}
	want := "post/i:1,user/s:ada,user/s:bob"
	if got := strings.Join(order, ","); got != want {
		t.Fatalf("expected order %s, got %s", want, got)
	}
	if !strings.Contains(lines[1], `"author":{"$ref":"user","$id":"ada"}`) {
		t.Fatalf("expected reference kept in extended JSON, got %s", lines[1])
	}
}

func TestExport_SelectedCollections(t *testing.T) {
	var buf bytes.Buffer
	h, err := Export(context.Background(), seededStore(t), &buf, "post")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Collections) != 1 || h.Collections["post"] != 1 {
		t.Fatalf("expected only post, got %v", h.Collections)
	}
	if strings.Contains(buf.String(), `"collection":"user"`) {
		t.Fatalf("unexpected user records:\n%s", buf.String())
	}
}

func TestImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seededStore(t)
	var buf bytes.Buffer
	if _, err := Export(ctx, src, &buf); err != nil {
		t.Fatal(err)
	}

	dst := memory.New()
	res, err := Import(ctx, dst, &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Imported != 3 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	for _, coll := range []string{"user", "post"} {
		want, _ := src.List(ctx, coll)
		got, _ := dst.List(ctx, coll)
		if len(want) != len(got) {
			t.Fatalf("%s: expected %d records, got %d", coll, len(want), len(got))
		}
		for i := range want {
			for k, v := range want[i] {
				if !equalValue(v, got[i][k]) {
					t.Fatalf("%s[%d].%s: expected %#v, got %#v", coll, i, k, v, got[i][k])
				}
			}
		}
	}
}

func TestImport_SkipsBadLines(t *testing.T) {
	oid := bson.NewObjectID()
	input := strings.Join([]string{
		`{"version":"1","type":"header","export_id":"x","collections":{"user":3}}`,
		`{"type":"record","collection":"user","record":{"_id":"ada","name":"Ada"}}`,
		`{"type":"record","collection":"user","record":{"name":"no key"}}`,
		`not json`,
		``,
		`{"type":"record","collection":"user","record":{"_id":{"$oid":"` + oid.Hex() + `"},"name":"Oid"}}`,
	}, "\n")

	st := memory.New()
	res, err := Import(context.Background(), st, strings.NewReader(input))
	if err == nil {
		t.Fatal("expected combined errors")
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", n, err)
	}
	if !strings.Contains(err.Error(), "line 3") || !strings.Contains(err.Error(), "line 4") {
		t.Fatalf("expected line numbers in %v", err)
	}
	if res.Imported != 2 || res.Failed != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := st.Find(context.Background(), "user", oid); err != nil {
		t.Fatalf("expected ObjectID-keyed record: %v", err)
	}
}

func TestImport_HeaderErrors(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"not json":    "garbage\n",
		"not header":  `{"type":"record","collection":"user","record":{}}`,
		"bad version": `{"version":"99","type":"header"}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Import(context.Background(), memory.New(), strings.NewReader(input)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func equalValue(a, b any) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && bytes.Equal(ab, bb)
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			result = append(result, l)
		}
	}
	return result
}
