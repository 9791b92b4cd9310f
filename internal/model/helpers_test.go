package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, defs ...SchemaDef) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, def := range defs {
		_, err := reg.Define(def)
		require.NoError(t, err, "define %s", def.Name)
	}
	require.NoError(t, reg.Resolve())
	return reg
}

func mustNew(t *testing.T, reg *Registry, name string, values map[string]any) *Document {
	t.Helper()
	d, err := reg.New(name, values)
	require.NoError(t, err)
	return d
}

// requireInvalid asserts that validation fails and names path.
func requireInvalid(t *testing.T, d *Document, path string) {
	t.Helper()
	err := d.Validate()
	require.Error(t, err)
	ve, ok := AsValidationError(err)
	require.True(t, ok, "expected *ValidationError, got %T", err)
	require.True(t, ve.Has(path), "expected error on %q, got %v", path, ve.Errors)
}

func requireValid(t *testing.T, d *Document) {
	t.Helper()
	require.NoError(t, d.Validate())
}
