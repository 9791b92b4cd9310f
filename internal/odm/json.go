package odm

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/store"
)

// DecodeJSON builds an unsaved document of the named schema, or of the
// subclass its "_cls" names, from a relaxed extended JSON record. "_id"
// becomes the primary key.
func (s *Session) DecodeJSON(schema string, data []byte) (*model.Document, error) {
	sc, ok := s.reg.Lookup(schema)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownSchema, schema)
	}
	rec, err := store.UnmarshalExtJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return model.Decode(sc, rec)
}

// EncodeJSON renders a top-level document as relaxed extended JSON.
// Resolved references are written back as references.
func EncodeJSON(d *model.Document) ([]byte, error) {
	rec, err := model.Encode(d)
	if err != nil {
		return nil, err
	}
	return store.MarshalExtJSON(rec)
}

// LoadText is Load with the key given in its textual form, as it appears
// in a URL path or on a command line.
func (s *Session) LoadText(ctx context.Context, schema, key string) (*model.Document, error) {
	sc, ok := s.reg.Lookup(schema)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownSchema, schema)
	}
	k, err := sc.ParseKey(key)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, schema, k)
}
