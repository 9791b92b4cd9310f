// Package storetest holds a conformance suite that every store.Store
// implementation runs against itself.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/alfredjeanlab/odm/internal/store"
)

// Run exercises s. The store must start empty for the collections it uses,
// which are all prefixed with "storetest_".
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("AssignsKey", func(t *testing.T) {
		key, err := s.Upsert(ctx, "storetest_people", nil, store.Record{"name": "Ada"})
		require.NoError(t, err)
		id, ok := key.(bson.ObjectID)
		require.True(t, ok, "assigned key is %T", key)

		rec, err := s.Find(ctx, "storetest_people", id)
		require.NoError(t, err)
		assert.Equal(t, id, rec[store.KeyField])
		assert.Equal(t, "Ada", rec["name"])
	})

	t.Run("ReplacesExisting", func(t *testing.T) {
		_, err := s.Upsert(ctx, "storetest_members", int64(1), store.Record{"n": int64(1), "old": true})
		require.NoError(t, err)
		key, err := s.Upsert(ctx, "storetest_members", int64(1), store.Record{"n": int64(2)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), key)

		rec, err := s.Find(ctx, "storetest_members", int64(1))
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec["n"])
		_, stale := rec["old"]
		assert.False(t, stale)
	})

	t.Run("PreservesValueTypes", func(t *testing.T) {
		at := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC)
		oid := bson.NewObjectID()
		in := store.Record{
			"s":    "text",
			"i":    int64(42),
			"f":    1.5,
			"b":    true,
			"t":    at,
			"bin":  []byte{0xe6, 0x00, 0xc4},
			"oid":  oid,
			"list": []any{"a", int64(1)},
			"doc":  map[string]any{"x": map[string]any{"y": "z"}},
			"ref":  map[string]any{"$ref": "other", "$id": oid},
		}
		_, err := s.Upsert(ctx, "storetest_types", "k", in)
		require.NoError(t, err)

		rec, err := s.Find(ctx, "storetest_types", "k")
		require.NoError(t, err)
		for k, v := range in {
			assert.Equal(t, v, rec[k], "field %s", k)
		}
	})

	t.Run("KeysAreTyped", func(t *testing.T) {
		_, err := s.Upsert(ctx, "storetest_keys", "1", store.Record{"kind": "string"})
		require.NoError(t, err)
		_, err = s.Upsert(ctx, "storetest_keys", int64(1), store.Record{"kind": "int"})
		require.NoError(t, err)

		rec, err := s.Find(ctx, "storetest_keys", "1")
		require.NoError(t, err)
		assert.Equal(t, "string", rec["kind"])
		rec, err = s.Find(ctx, "storetest_keys", int64(1))
		require.NoError(t, err)
		assert.Equal(t, "int", rec["kind"])
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.Find(ctx, "storetest_missing", "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "storetest_missing", "nope"), store.ErrNotFound)
	})

	t.Run("DeleteAndDrop", func(t *testing.T) {
		for _, k := range []string{"a", "b", "c"} {
			_, err := s.Upsert(ctx, "storetest_drop", k, store.Record{"v": k})
			require.NoError(t, err)
		}
		require.NoError(t, s.Delete(ctx, "storetest_drop", "b"))
		_, err := s.Find(ctx, "storetest_drop", "b")
		assert.ErrorIs(t, err, store.ErrNotFound)

		recs, err := s.List(ctx, "storetest_drop")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "a", recs[0]["v"])
		assert.Equal(t, "c", recs[1]["v"])

		names, err := s.Collections(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, "storetest_drop")

		require.NoError(t, s.Drop(ctx, "storetest_drop"))
		recs, err = s.List(ctx, "storetest_drop")
		require.NoError(t, err)
		assert.Empty(t, recs)
		require.NoError(t, s.Drop(ctx, "storetest_never_created"))
	})
}
