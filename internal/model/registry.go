package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry holds every schema known to a process. Registration happens in two
// phases: Define declares schemas in any order (references may name schemas
// that are not yet defined), then Resolve checks that every referenced name
// exists and freezes the registry. After Resolve the registry is read-only
// and safe for concurrent use without further locking.
type Registry struct {
	mu       sync.Mutex
	schemas  map[string]*Schema
	order    []string
	resolved atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Define registers a schema. Parents named by Extends must already be defined.
func (r *Registry) Define(def SchemaDef) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved.Load() {
		return nil, ErrRegistryFrozen
	}
	if err := checkName(def.Name); err != nil {
		return nil, fmt.Errorf("%w: schema name: %v", ErrInvalidSchema, err)
	}
	if def.Name == SelfTarget {
		return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidSchema, SelfTarget)
	}
	if _, dup := r.schemas[def.Name]; dup {
		return nil, fmt.Errorf("%w: schema %q already defined", ErrInvalidSchema, def.Name)
	}

	s := &Schema{
		reg:      r,
		name:     def.Name,
		embedded: def.Embedded,
		inherit:  def.AllowInheritance,
		dynamic:  def.Dynamic,
		byName:   make(map[string]*Field),
		descend:  make(map[string]*Schema),
	}

	if def.Extends != "" {
		parent, ok := r.schemas[def.Extends]
		if !ok {
			return nil, fmt.Errorf("%w: %q extends undefined schema %q", ErrUnknownSchema, def.Name, def.Extends)
		}
		if !parent.inherit {
			return nil, fmt.Errorf("%w: %q extends %q, which does not allow inheritance", ErrInvalidSchema, def.Name, parent.name)
		}
		if def.Embedded != parent.embedded {
			return nil, fmt.Errorf("%w: %q and its parent %q must both be embedded or both top-level", ErrInvalidSchema, def.Name, parent.name)
		}
		if def.Collection != "" && def.Collection != parent.collection {
			return nil, fmt.Errorf("%w: %q cannot change the collection of its hierarchy", ErrInvalidSchema, def.Name)
		}
		s.parent = parent
		s.collection = parent.collection
		s.inherit = true
		s.dynamic = s.dynamic || parent.dynamic
		s.pk = parent.pk
		s.implPK = parent.implPK
		for _, f := range parent.fields {
			s.fields = append(s.fields, f)
			s.byName[f.name] = f
		}
	} else if !def.Embedded {
		s.collection = def.Collection
		if s.collection == "" {
			s.collection = strings.ToLower(def.Name)
		}
	}

	for _, f := range def.Fields {
		if f == nil {
			return nil, fmt.Errorf("%w: %q has a nil field", ErrInvalidSchema, def.Name)
		}
		if f.err != nil {
			return nil, fmt.Errorf("schema %q: %w", def.Name, f.err)
		}
		if err := checkName(f.name); err != nil {
			return nil, fmt.Errorf("%w: schema %q field name: %v", ErrInvalidField, def.Name, err)
		}
		if _, dup := s.byName[f.name]; dup {
			return nil, fmt.Errorf("%w: schema %q declares field %q more than once", ErrInvalidField, def.Name, f.name)
		}
		if f.primaryKey {
			switch {
			case def.Embedded:
				return nil, fmt.Errorf("%w: embedded schema %q cannot have a primary key", ErrInvalidField, def.Name)
			case s.parent != nil:
				return nil, fmt.Errorf("%w: subclass %q cannot redeclare the primary key", ErrInvalidField, def.Name)
			case s.pk != nil:
				return nil, fmt.Errorf("%w: schema %q has more than one primary key", ErrInvalidField, def.Name)
			}
		}
		bound := f.bindSelf(def.Name)
		s.fields = append(s.fields, bound)
		s.byName[bound.name] = bound
		if bound.primaryKey {
			s.pk = bound
		}
	}

	if s.pk == nil && !s.embedded {
		if _, taken := s.byName["id"]; taken {
			return nil, fmt.Errorf("%w: schema %q declares \"id\" without making it the primary key", ErrInvalidField, def.Name)
		}
		// The implicit key is assigned by the store on first save, so it is
		// not required.
		id := ObjectIDField("id")
		id.primaryKey = true
		s.fields = append([]*Field{id}, s.fields...)
		s.byName["id"] = id
		s.pk = id
		s.implPK = true
	}

	r.schemas[s.name] = s
	r.order = append(r.order, s.name)
	for p := s.parent; p != nil; p = p.parent {
		p.descend[s.name] = s
	}
	return s, nil
}

// MustDefine is like Define but panics on error.
func (r *Registry) MustDefine(def SchemaDef) *Schema {
	s, err := r.Define(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Resolve verifies every embedded and reference target and freezes the
// registry. Calling it again is a no-op.
func (r *Registry) Resolve() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved.Load() {
		return nil
	}
	for _, name := range r.order {
		s := r.schemas[name]
		for _, top := range s.fields {
			var err error
			top.walk(func(f *Field) {
				if err != nil {
					return
				}
				err = r.checkTarget(s, top, f)
			})
			if err != nil {
				return err
			}
		}
	}
	r.resolved.Store(true)
	return nil
}

func (r *Registry) checkTarget(s *Schema, top, f *Field) error {
	if f.kind != KindEmbedded && f.kind != KindReference {
		return nil
	}
	t, ok := r.schemas[f.target]
	if !ok {
		return fmt.Errorf("%w: %s.%s targets %q", ErrUnknownSchema, s.name, top.name, f.target)
	}
	if f.kind == KindEmbedded && !t.embedded {
		return fmt.Errorf("%w: %s.%s embeds top-level schema %q", ErrInvalidField, s.name, top.name, t.name)
	}
	if f.kind == KindReference && t.embedded {
		return fmt.Errorf("%w: %s.%s references embedded schema %q", ErrInvalidField, s.name, top.name, t.name)
	}
	if top.ordering != "" && top.elem == f {
		if _, ok := t.byName[top.ordering]; !ok {
			return fmt.Errorf("%w: %s.%s orders by unknown field %q of %q", ErrInvalidField, s.name, top.name, top.ordering, t.name)
		}
	}
	return nil
}

// IsResolved reports whether Resolve has completed.
func (r *Registry) IsResolved() bool {
	return r.resolved.Load()
}

// Lookup finds a schema by name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Schemas returns every schema sorted by name.
func (r *Registry) Schemas() []*Schema {
	out := make([]*Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// New creates a document of the named schema with defaults applied and the
// given values assigned. Unknown names fail with ErrUnknownField unless the
// schema is dynamic.
func (r *Registry) New(name string, values map[string]any) (*Document, error) {
	s, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
	}
	return s.New(values)
}

// checkName rejects names that cannot be stored as document keys.
func checkName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is empty")
	case strings.HasPrefix(name, "$"):
		return fmt.Errorf("%q must not start with '$'", name)
	case strings.Contains(name, "."):
		return fmt.Errorf("%q must not contain '.'", name)
	case name == WireKey || name == WireClass:
		return fmt.Errorf("%q is reserved", name)
	}
	return nil
}
