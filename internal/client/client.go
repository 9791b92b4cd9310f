// Package client talks to an odm server. Remote is a store.Store over the
// DocumentStore gRPC service; DocumentClient is the document-level API the
// CLI uses, served either over HTTP or in-process.
package client

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/alfredjeanlab/odm/internal/odm"
)

// DocumentClient is the document-level API. Documents travel as relaxed
// extended JSON. Validation failures are returned as *model.ValidationError
// and missing documents satisfy errors.Is(err, store.ErrNotFound).
type DocumentClient interface {
	Health(ctx context.Context) (string, error)
	Schemas(ctx context.Context) ([]odm.SchemaInfo, error)

	Save(ctx context.Context, schema string, doc []byte) (json.RawMessage, error)
	Validate(ctx context.Context, schema string, doc []byte) error
	Get(ctx context.Context, schema, key string) (json.RawMessage, error)
	List(ctx context.Context, schema string) ([]json.RawMessage, error)
	Delete(ctx context.Context, schema, key string) error
	Drop(ctx context.Context, schema string) error

	Close() error
}
