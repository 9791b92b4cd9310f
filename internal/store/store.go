// Package store defines the persistence interface the document layer writes
// through, along with the record codec shared by every backend.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no document exists under the requested key.
var ErrNotFound = errors.New("document not found")

// Record is a document in stored form, keyed by field name with the primary
// key under "_id". Values are limited to nil, string, int64, float64, bool,
// time.Time, []byte, bson.ObjectID, []any and map[string]any.
type Record = map[string]any

// KeyField is the record field holding the primary key.
const KeyField = "_id"

// Store persists records in named collections.
type Store interface {
	// Upsert writes rec under key, replacing any existing record. A nil key
	// asks the store to assign one. The stored key is returned.
	Upsert(ctx context.Context, collection string, key any, rec Record) (any, error)
	// Find returns the record stored under key, or ErrNotFound.
	Find(ctx context.Context, collection string, key any) (Record, error)
	// Delete removes the record stored under key, or returns ErrNotFound.
	Delete(ctx context.Context, collection string, key any) error
	// Drop removes every record in the collection.
	Drop(ctx context.Context, collection string) error
	// List returns every record in the collection ordered by key.
	List(ctx context.Context, collection string) ([]Record, error)
	// Collections returns the names of the non-empty collections, sorted.
	Collections(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
}
