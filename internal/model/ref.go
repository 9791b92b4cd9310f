package model

import (
	"fmt"
	"reflect"
)

// Ref is a stored pointer to a top-level document: its collection and
// primary key in wire form. Generic references also carry the concrete
// schema name so they can be resolved without knowing the target up front.
type Ref struct {
	Collection string
	Key        any
	Type       string
}

// RefTo builds a reference to a saved top-level document.
func RefTo(d *Document) (Ref, error) {
	if d == nil {
		return Ref{}, fmt.Errorf("reference to nil document")
	}
	if d.schema.embedded {
		return Ref{}, ErrNotTopLevel
	}
	if !d.HasKey() {
		return Ref{}, fmt.Errorf("%w: %s must be saved before it can be referenced", ErrNoKey, d.schema.name)
	}
	key, err := d.schema.pk.toWire(d.Key())
	if err != nil {
		return Ref{}, err
	}
	return Ref{Collection: d.schema.collection, Key: key, Type: d.schema.name}, nil
}

// Wire returns the stored form {"$ref": collection, "$id": key} plus "_cls"
// for typed references.
func (r Ref) Wire() map[string]any {
	m := map[string]any{WireRef: r.Collection, WireRefID: r.Key}
	if r.Type != "" {
		m[WireClass] = r.Type
	}
	return m
}

// RefFromWire recognizes the stored form produced by Wire.
func RefFromWire(v any) (Ref, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Ref{}, false
	}
	coll, ok := m[WireRef].(string)
	if !ok {
		return Ref{}, false
	}
	key, ok := m[WireRefID]
	if !ok || key == nil {
		return Ref{}, false
	}
	r := Ref{Collection: coll, Key: key}
	r.Type, _ = m[WireClass].(string)
	return r, true
}

// Same reports whether two references point at the same stored document,
// ignoring the schema name.
func (r Ref) Same(o Ref) bool {
	return r.Collection == o.Collection && reflect.DeepEqual(r.Key, o.Key)
}

func (r Ref) String() string {
	if r.Type != "" {
		return fmt.Sprintf("%s(%s/%v)", r.Type, r.Collection, r.Key)
	}
	return fmt.Sprintf("%s/%v", r.Collection, r.Key)
}
