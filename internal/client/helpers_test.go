package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/odm"
	"github.com/alfredjeanlab/odm/internal/store"
	"github.com/alfredjeanlab/odm/internal/store/memory"
)

func newSession(t *testing.T) *odm.Session {
	t.Helper()
	reg := model.NewRegistry()
	_, err := reg.Define(model.SchemaDef{Name: "User", Fields: []*model.Field{
		model.StringField("handle", model.PrimaryKey()),
		model.StringField("name", model.Required()),
	}})
	require.NoError(t, err)
	_, err = reg.Define(model.SchemaDef{Name: "Note", Fields: []*model.Field{
		model.StringField("text"),
		model.ReferenceField("owner", "User"),
	}})
	require.NoError(t, err)
	require.NoError(t, reg.Resolve())

	s, err := odm.NewSession(memory.New(), reg)
	require.NoError(t, err)
	return s
}

// exerciseClient runs the same document workflow against any DocumentClient.
func exerciseClient(t *testing.T, c DocumentClient) {
	t.Helper()
	ctx := t.Context()

	status, err := c.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", status)

	schemas, err := c.Schemas(ctx)
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	require.Equal(t, "Note", schemas[0].Name)

	saved, err := c.Save(ctx, "User", []byte(`{"_id":"ada","name":"Ada"}`))
	require.NoError(t, err)
	require.Contains(t, string(saved), `"name":"Ada"`)

	_, err = c.Save(ctx, "User", []byte(`{"_id":"bob"}`))
	ve, ok := model.AsValidationError(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	require.True(t, ve.Has("name"))

	require.NoError(t, c.Validate(ctx, "User", []byte(`{"_id":"cy","name":"Cy"}`)))
	_, ok = model.AsValidationError(c.Validate(ctx, "User", []byte(`{"_id":"cy"}`)))
	require.True(t, ok)

	_, err = c.Save(ctx, "Note", []byte(`{"text":"hi","owner":{"$ref":"user","$id":"ada"}}`))
	require.NoError(t, err)

	got, err := c.Get(ctx, "User", "ada")
	require.NoError(t, err)
	require.Contains(t, string(got), `"_id":"ada"`)

	_, err = c.Get(ctx, "User", "bob")
	require.ErrorIs(t, err, store.ErrNotFound)

	notes, err := c.List(ctx, "Note")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Contains(t, string(notes[0]), `"$ref":"user"`)

	require.NoError(t, c.Delete(ctx, "User", "ada"))
	require.ErrorIs(t, c.Delete(ctx, "User", "ada"), store.ErrNotFound)

	require.NoError(t, c.Drop(ctx, "Note"))
	notes, err = c.List(ctx, "Note")
	require.NoError(t, err)
	require.Empty(t, notes)
}
