package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/events"
	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/odm"
	"github.com/alfredjeanlab/odm/internal/store/memory"
)

func testRegistry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()
	for _, def := range []model.SchemaDef{
		{Name: "User", Fields: []*model.Field{
			model.StringField("handle", model.PrimaryKey()),
			model.StringField("name", model.Required(), model.MaxLength(20)),
		}},
		{Name: "Comment", Embedded: true, Fields: []*model.Field{
			model.StringField("text", model.Required()),
			model.ReferenceField("by", "User"),
		}},
		{Name: "Post", Fields: []*model.Field{
			model.StringField("title"),
			model.ReferenceField("author", "User"),
			model.ListField("comments", model.EmbeddedDocumentField("", "Comment")),
		}},
	} {
		if _, err := reg.Define(def); err != nil {
			t.Fatalf("define %s: %v", def.Name, err)
		}
	}
	if err := reg.Resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return reg
}

type testServer struct {
	srv     *Server
	store   *memory.MemoryStore
	stream  *Stream
	events  *events.Recorder
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memory.New()
	rec := &events.Recorder{}
	stream := NewStream(rec, zap.NewNop())
	session, err := odm.NewSession(st, testRegistry(t), odm.WithPublisher(stream))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	srv := New(session, stream, zap.NewNop())
	return &testServer{
		srv:     srv,
		store:   st,
		stream:  stream,
		events:  rec,
		handler: srv.NewHTTPHandler(""),
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}
