package odm

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/store"
)

// Dereference fetches the document a reference points at. Generic
// references carry their schema name; plain ones are resolved through the
// root schema stored in the collection. A missing target yields a
// *DereferenceError wrapping ErrNotFound.
func (s *Session) Dereference(ctx context.Context, ref model.Ref) (*model.Document, error) {
	return s.fetch(ctx, ref)
}

// DereferenceField resolves the references held by one field of d and
// stores the resolved documents back into it: a single document for a
// reference field, element-wise for lists, sets and maps. Sets collapse
// references that resolve to the same document. Any missing target fails
// the whole call and leaves d unchanged. It fails with ErrBusy while
// another operation on d is in flight.
func (s *Session) DereferenceField(ctx context.Context, d *model.Document, name string) (any, error) {
	release, err := d.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	f, ok := d.Schema().Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", model.ErrUnknownField, d.Schema().Name(), name)
	}
	v, ok := d.Lookup(name)
	if !ok {
		return nil, nil
	}
	r := s.newResolver(true)
	if d.HasKey() {
		r.seen[identity(d)] = d
	}
	nv, err := r.value(ctx, f, v, 1)
	if err != nil {
		return nil, err
	}
	if err := d.Set(name, nv); err != nil {
		return nil, err
	}
	return nv, nil
}

func (s *Session) fetch(ctx context.Context, ref model.Ref) (*model.Document, error) {
	sc, err := s.refSchema(ref)
	if err != nil {
		return nil, &DereferenceError{Ref: ref, Err: err}
	}
	rec, err := s.store.Find(ctx, ref.Collection, ref.Key)
	if err != nil {
		return nil, &DereferenceError{Ref: ref, Err: err}
	}
	d, err := model.Decode(sc.Root(), rec)
	if err != nil {
		return nil, &DereferenceError{Ref: ref, Err: err}
	}
	if !d.Schema().IsA(sc) {
		return nil, &DereferenceError{Ref: ref, Err: model.ErrIncompatibleCls}
	}
	d.MarkLoaded()
	return d, nil
}

func (s *Session) refSchema(ref model.Ref) (*model.Schema, error) {
	if ref.Type != "" {
		sc, ok := s.reg.Lookup(ref.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %s", model.ErrUnknownSchema, ref.Type)
		}
		if sc.IsEmbedded() || sc.Collection() != ref.Collection {
			return nil, fmt.Errorf("%w: %s is not stored in %s", model.ErrIncompatibleCls, ref.Type, ref.Collection)
		}
		return sc, nil
	}
	for _, sc := range s.reg.Schemas() {
		if !sc.IsEmbedded() && sc.Parent() == nil && sc.Collection() == ref.Collection {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: no schema stores %s", model.ErrUnknownSchema, ref.Collection)
}

// resolver replaces model.Ref values with documents. Each target is fetched
// once per resolver, so repeated and cyclic references share one instance.
type resolver struct {
	s      *Session
	strict bool
	seen   map[string]*model.Document
}

func (s *Session) newResolver(strict bool) *resolver {
	return &resolver{s: s, strict: strict, seen: make(map[string]*model.Document)}
}

func (r *resolver) document(ctx context.Context, d *model.Document, depth int) error {
	for _, f := range d.Schema().Fields() {
		v, ok := d.Lookup(f.Name())
		if !ok {
			continue
		}
		nv, err := r.value(ctx, f, v, depth)
		if err != nil {
			return err
		}
		if err := d.Set(f.Name(), nv); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) value(ctx context.Context, f *model.Field, v any, depth int) (any, error) {
	switch f.Kind() {
	case model.KindReference, model.KindGenericReference:
		ref, ok := v.(model.Ref)
		if !ok {
			return v, nil
		}
		d, err := r.ref(ctx, ref, depth)
		if err != nil {
			if !r.strict && IsNotFound(err) {
				r.s.logger.Debug("leaving dangling reference unresolved", zap.Stringer("ref", ref))
				return v, nil
			}
			return nil, err
		}
		return d, nil
	case model.KindList, model.KindSet:
		items, ok := v.([]any)
		if !ok {
			return v, nil
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			nv, err := r.value(ctx, f.Elem(), item, depth)
			if err != nil {
				return nil, err
			}
			if f.Kind() == model.KindSet && containsIdentity(out, nv) {
				continue
			}
			out = append(out, nv)
		}
		return out, nil
	case model.KindMap:
		m, ok := v.(map[string]any)
		if !ok {
			return v, nil
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			nv, err := r.value(ctx, f.Elem(), item, depth)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case model.KindEmbedded:
		if d, ok := v.(*model.Document); ok && d != nil {
			if err := r.document(ctx, d, depth); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

func (r *resolver) ref(ctx context.Context, ref model.Ref, depth int) (*model.Document, error) {
	id := refIdentity(ref)
	if d, ok := r.seen[id]; ok {
		return d, nil
	}
	d, err := r.s.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	r.seen[id] = d
	if depth > 1 {
		if err := r.document(ctx, d, depth-1); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func identity(d *model.Document) string {
	key, err := d.Schema().PrimaryKey().ToWire(d.Key())
	if err != nil {
		return ""
	}
	ks, _ := store.KeyString(key)
	return d.Schema().Collection() + "/" + ks
}

func refIdentity(ref model.Ref) string {
	ks, _ := store.KeyString(ref.Key)
	return ref.Collection + "/" + ks
}

// containsIdentity reports whether items already holds v, comparing
// documents and references by the stored document they denote.
func containsIdentity(items []any, v any) bool {
	id, keyed := identityOf(v)
	for _, item := range items {
		if keyed {
			if other, ok := identityOf(item); ok && other == id {
				return true
			}
			continue
		}
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

func identityOf(v any) (string, bool) {
	switch t := v.(type) {
	case *model.Document:
		if t != nil && t.HasKey() && !t.Schema().IsEmbedded() {
			return identity(t), true
		}
	case model.Ref:
		return refIdentity(t), true
	}
	return "", false
}
