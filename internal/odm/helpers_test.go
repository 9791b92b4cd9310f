package odm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/odm/internal/events"
	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/store/memory"
)

func newRegistry(t *testing.T, defs ...model.SchemaDef) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()
	for _, def := range defs {
		_, err := reg.Define(def)
		require.NoError(t, err, "define %s", def.Name)
	}
	require.NoError(t, reg.Resolve())
	return reg
}

// newSession returns a session over a fresh memory store and the recorder
// capturing its events.
func newSession(t *testing.T, reg *model.Registry, opts ...Option) (*Session, *memory.MemoryStore, *events.Recorder) {
	t.Helper()
	st := memory.New()
	rec := &events.Recorder{}
	s, err := NewSession(st, reg, append([]Option{WithPublisher(rec)}, opts...)...)
	require.NoError(t, err)
	return s, st, rec
}

func mustNew(t *testing.T, reg *model.Registry, name string, values map[string]any) *model.Document {
	t.Helper()
	d, err := reg.New(name, values)
	require.NoError(t, err)
	return d
}

func blogRegistry(t *testing.T) *model.Registry {
	return newRegistry(t,
		model.SchemaDef{Name: "User", AllowInheritance: true, Fields: []*model.Field{
			model.StringField("name", model.Required()),
		}},
		model.SchemaDef{Name: "PowerUser", Extends: "User", Fields: []*model.Field{
			model.IntField("power"),
		}},
		model.SchemaDef{Name: "Post", Fields: []*model.Field{
			model.StringField("title"),
			model.ReferenceField("author", "User"),
			model.ListField("readers", model.ReferenceField("", "User")),
			model.SetField("likes", model.ReferenceField("", "User")),
			model.MapField("roles", model.ReferenceField("", "User")),
		}},
		model.SchemaDef{Name: "Link", Fields: []*model.Field{
			model.URLField("url"),
		}},
		model.SchemaDef{Name: "Bookmark", Fields: []*model.Field{
			model.GenericReferenceField("bookmark_object"),
		}},
	)
}
