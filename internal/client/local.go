package client

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/alfredjeanlab/odm/internal/odm"
)

// Local implements DocumentClient in-process over a session.
type Local struct {
	session *odm.Session
}

var _ DocumentClient = (*Local)(nil)

// NewLocal wraps session.
func NewLocal(session *odm.Session) *Local {
	return &Local{session: session}
}

func (l *Local) Health(context.Context) (string, error) { return "ok", nil }

func (l *Local) Schemas(context.Context) ([]odm.SchemaInfo, error) {
	return l.session.DescribeAll(), nil
}

func (l *Local) Save(ctx context.Context, schema string, doc []byte) (json.RawMessage, error) {
	d, err := l.session.DecodeJSON(schema, doc)
	if err != nil {
		return nil, err
	}
	if err := l.session.Save(ctx, d); err != nil {
		return nil, err
	}
	return odm.EncodeJSON(d)
}

func (l *Local) Validate(_ context.Context, schema string, doc []byte) error {
	d, err := l.session.DecodeJSON(schema, doc)
	if err != nil {
		return err
	}
	return d.Validate()
}

func (l *Local) Get(ctx context.Context, schema, key string) (json.RawMessage, error) {
	d, err := l.session.LoadText(ctx, schema, key)
	if err != nil {
		return nil, err
	}
	return odm.EncodeJSON(d)
}

func (l *Local) List(ctx context.Context, schema string) ([]json.RawMessage, error) {
	docs, err := l.session.All(ctx, schema)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		raw, err := odm.EncodeJSON(d)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (l *Local) Delete(ctx context.Context, schema, key string) error {
	d, err := l.session.LoadText(ctx, schema, key)
	if err != nil {
		return err
	}
	return l.session.Delete(ctx, d)
}

func (l *Local) Drop(ctx context.Context, schema string) error {
	return l.session.DropCollection(ctx, schema)
}

// Close closes the session's store.
func (l *Local) Close() error {
	return l.session.Store().Close()
}
