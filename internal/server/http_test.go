package server

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/alfredjeanlab/odm/internal/events"
)

func TestHTTP_Health(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != "ok" {
		t.Fatalf("expected status ok, got %v", got)
	}
}

func TestHTTP_Schemas(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/schemas", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	schemas, _ := decodeBody(t, rec)["schemas"].([]any)
	if len(schemas) != 3 {
		t.Fatalf("expected 3 schemas, got %v", schemas)
	}

	rec = ts.do(t, http.MethodGet, "/v1/schemas/Comment", "")
	body := decodeBody(t, rec)
	if body["embedded"] != true {
		t.Fatalf("expected Comment to be embedded, got %v", body)
	}

	rec = ts.do(t, http.MethodGet, "/v1/schemas/Nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHTTP_SaveAndGet(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/documents/User", `{"_id":"ada","name":"Ada"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for a new caller-keyed document, got %d: %s", rec.Code, rec.Body)
	}
	rec = ts.do(t, http.MethodPost, "/v1/documents/User", `{"_id":"ada","name":"Ada"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when replacing ada, got %d: %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, "/v1/documents/Post",
		`{"title":"Hello","author":{"$ref":"user","$id":"ada"},"comments":[{"text":"first","by":{"$ref":"user","$id":"ada"}}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	post := decodeBody(t, rec)
	id, ok := post["_id"].(map[string]any)
	if !ok || id["$oid"] == nil {
		t.Fatalf("expected an ObjectID key, got %v", post["_id"])
	}

	rec = ts.do(t, http.MethodGet, "/v1/documents/Post/"+id["$oid"].(string), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	got := decodeBody(t, rec)
	author, _ := got["author"].(map[string]any)
	if author["$ref"] != "user" || author["$id"] != "ada" {
		t.Fatalf("expected author stored as a reference, got %v", got["author"])
	}

	rec = ts.do(t, http.MethodGet, "/v1/documents/User/ada", "")
	if got := decodeBody(t, rec)["name"]; got != "Ada" {
		t.Fatalf("expected name Ada, got %v", got)
	}
}

func TestHTTP_GetField(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/documents/User", `{"_id":"ada","name":"Ada"}`)
	rec := ts.do(t, http.MethodPost, "/v1/documents/Post",
		`{"title":"Hello","author":{"$ref":"user","$id":"ada"},"comments":[{"text":"first","by":{"$ref":"user","$id":"ada"}}]}`)
	id := decodeBody(t, rec)["_id"].(map[string]any)["$oid"].(string)

	rec = ts.do(t, http.MethodGet, "/v1/documents/Post/"+id+"/author", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	author, _ := decodeBody(t, rec)["value"].(map[string]any)
	if author["name"] != "Ada" {
		t.Fatalf("expected the dereferenced user, got %v", author)
	}

	rec = ts.do(t, http.MethodGet, "/v1/documents/Post/"+id+"/comments", "")
	comments, _ := decodeBody(t, rec)["value"].([]any)
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment, got %v", comments)
	}
	by, _ := comments[0].(map[string]any)["by"].(map[string]any)
	if by["name"] != "Ada" {
		t.Fatalf("expected comment author resolved, got %v", comments[0])
	}

	rec = ts.do(t, http.MethodGet, "/v1/documents/Post/"+id+"/nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown field, got %d", rec.Code)
	}
}

func TestHTTP_DanglingFieldIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/documents/Post", `{"author":{"$ref":"user","$id":"ghost"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	id := decodeBody(t, rec)["_id"].(map[string]any)["$oid"].(string)

	rec = ts.do(t, http.MethodGet, "/v1/documents/Post/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected eager load to tolerate a dangling ref, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/v1/documents/Post/"+id+"/author", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHTTP_ValidationFailure(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/documents/User", `{"_id":"bob","name":"`+strings.Repeat("x", 21)+`"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
	}
	fields, _ := decodeBody(t, rec)["fields"].([]any)
	if len(fields) != 1 || fields[0].(map[string]any)["field"] != "name" {
		t.Fatalf("expected a name error, got %v", fields)
	}

	recs, err := ts.store.List(context.Background(), "user")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected nothing written, got %v", recs)
	}
}

func TestHTTP_Validate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/validate/User", `{"_id":"ada","name":"Ada"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	rec = ts.do(t, http.MethodPost, "/v1/validate/User", `{}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if len(ts.events.Events()) != 0 {
		t.Fatalf("validate must not publish, got %v", ts.events.Topics())
	}
}

func TestHTTP_BadRequests(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"invalid json", http.MethodPost, "/v1/documents/User", `{"name":`, http.StatusBadRequest},
		{"unknown schema", http.MethodPost, "/v1/documents/Nope", `{}`, http.StatusNotFound},
		{"embedded schema", http.MethodPost, "/v1/documents/Comment", `{"text":"x"}`, http.StatusBadRequest},
		{"bad object id", http.MethodGet, "/v1/documents/Post/zzz", "", http.StatusBadRequest},
		{"missing document", http.MethodGet, "/v1/documents/User/nobody", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body)
			}
		})
	}
}

func TestHTTP_ListDeleteDrop(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/documents/User", `{"_id":"ada","name":"Ada"}`)
	ts.do(t, http.MethodPost, "/v1/documents/User", `{"_id":"bob","name":"Bob"}`)

	rec := ts.do(t, http.MethodGet, "/v1/documents/User", "")
	docs, _ := decodeBody(t, rec)["documents"].([]any)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %v", docs)
	}

	if rec := ts.do(t, http.MethodDelete, "/v1/documents/User/ada", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/v1/documents/User/ada", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodDelete, "/v1/collections/User", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/v1/documents/User", "")
	docs, _ = decodeBody(t, rec)["documents"].([]any)
	if len(docs) != 0 {
		t.Fatalf("expected empty collection, got %v", docs)
	}

	want := []string{
		events.TopicDocumentSaved,
		events.TopicDocumentSaved,
		events.TopicDocumentDeleted,
		events.TopicCollectionDropped,
	}
	got := ts.events.Topics()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected topics %v, got %v", want, got)
	}
}

func TestHTTP_AuthToken(t *testing.T) {
	ts := newTestServer(t)
	h := ts.srv.NewHTTPHandler("secret")

	ts.handler = h
	if rec := ts.do(t, http.MethodGet, "/v1/documents/User", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/v1/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected health exempt, got %d", rec.Code)
	}
}
