package model

import (
	"fmt"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Field names reserved for the stored form.
const (
	WireKey   = "_id"
	WireClass = "_cls"
	WireRef   = "$ref"
	WireRefID = "$id"
)

// SchemaDef declares a schema for Registry.Define.
type SchemaDef struct {
	Name string
	// Extends names a previously defined parent schema whose fields,
	// collection and primary key are inherited.
	Extends string
	// Collection overrides the storage collection. It defaults to the
	// lower-cased schema name; subclasses always share their root's.
	Collection string
	// Embedded schemas have no identity and are stored inside other documents.
	Embedded bool
	// AllowInheritance permits subclasses and stores the concrete schema
	// name under "_cls".
	AllowInheritance bool
	// Dynamic schemas accept fields that were not declared.
	Dynamic bool
	Fields  []*Field
}

// Schema is a registered document type. Schemas are immutable once the
// registry is resolved and safe to read concurrently.
type Schema struct {
	reg *Registry

	name       string
	collection string
	embedded   bool
	inherit    bool
	dynamic    bool
	parent     *Schema

	fields  []*Field
	byName  map[string]*Field
	pk      *Field
	implPK  bool
	descend map[string]*Schema
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Collection returns the storage collection, shared by a whole hierarchy.
func (s *Schema) Collection() string { return s.collection }

// IsEmbedded reports whether the schema describes embedded documents.
func (s *Schema) IsEmbedded() bool { return s.embedded }

// IsDynamic reports whether undeclared fields are accepted.
func (s *Schema) IsDynamic() bool { return s.dynamic }

// AllowsInheritance reports whether subclasses may be defined.
func (s *Schema) AllowsInheritance() bool { return s.inherit }

// Parent returns the schema this one extends, or nil.
func (s *Schema) Parent() *Schema { return s.parent }

// Root returns the top of the schema's hierarchy.
func (s *Schema) Root() *Schema {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Registry returns the registry the schema belongs to.
func (s *Schema) Registry() *Registry { return s.reg }

// Fields returns the schema's fields, inherited fields first.
func (s *Schema) Fields() []*Field {
	return append([]*Field(nil), s.fields...)
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// PrimaryKey returns the key field. Embedded schemas have none.
func (s *Schema) PrimaryKey() *Field { return s.pk }

// HasImplicitKey reports whether the key is the generated "id" ObjectID field.
func (s *Schema) HasImplicitKey() bool { return s.implPK }

// IsA reports whether s is other or one of its descendants.
func (s *Schema) IsA(other *Schema) bool {
	for c := s; c != nil; c = c.parent {
		if c == other {
			return true
		}
	}
	return false
}

// Subclasses returns the names of all descendants, sorted.
func (s *Schema) Subclasses() []string {
	names := make([]string, 0, len(s.descend))
	for n := range s.descend {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// writesClass reports whether stored documents carry the "_cls" discriminator.
func (s *Schema) writesClass() bool {
	return s.Root().inherit
}

func wireName(f *Field) string {
	if f.primaryKey {
		return WireKey
	}
	return f.name
}

// New creates a document of this schema. See Registry.New.
func (s *Schema) New(values map[string]any) (*Document, error) {
	if !s.reg.resolved.Load() {
		return nil, ErrNotResolved
	}
	d := newDocument(s)
	for name, v := range values {
		if err := d.Set(name, v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// MustNew is like New but panics on error.
func (s *Schema) MustNew(values map[string]any) *Document {
	d, err := s.New(values)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseKey converts the text form of a primary key, as it appears in URLs
// and on command lines, to its native value.
func (s *Schema) ParseKey(text string) (any, error) {
	if s.pk == nil {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrNotTopLevel, s.name)
	}
	switch s.pk.kind {
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, &CoercionError{Field: s.pk.name, Kind: KindInt, Value: text, Reason: "not an integer"}
		}
		return n, nil
	case KindObjectID:
		id, err := bson.ObjectIDFromHex(text)
		if err != nil {
			return nil, &CoercionError{Field: s.pk.name, Kind: KindObjectID, Value: text, Reason: "not an ObjectId"}
		}
		return id, nil
	}
	return text, nil
}
