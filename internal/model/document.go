package model

import (
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"
)

// State tracks where a document is in its lifecycle.
type State int

const (
	StateNew State = iota
	StateValidating
	StateValid
	StateInvalid
	StateSaved
	StateReloaded
	StateDeleted
)

var stateNames = [...]string{"new", "validating", "valid", "invalid", "saved", "reloaded", "deleted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Document is one instance of a schema: field values plus, for dynamic
// schemas, undeclared values. A Document is not safe for concurrent
// mutation; the persistence layer guards it with Acquire.
type Document struct {
	schema  *Schema
	values  map[string]any
	dynamic map[string]any
	state   State
	busy    atomic.Bool
}

func newDocument(s *Schema) *Document {
	d := &Document{schema: s, values: make(map[string]any, len(s.fields))}
	for _, f := range s.fields {
		if v := f.defaultValue(); v != nil {
			d.values[f.name] = v
		}
	}
	return d
}

// Schema returns the document's concrete schema.
func (d *Document) Schema() *Schema { return d.schema }

// State returns the lifecycle state.
func (d *Document) State() State { return d.state }

// Get returns the value of a declared or dynamic field, or nil.
func (d *Document) Get(name string) any {
	if v, ok := d.values[name]; ok {
		return v
	}
	return d.dynamic[name]
}

// Lookup is like Get but also reports whether the field holds a value.
func (d *Document) Lookup(name string) (any, bool) {
	if v, ok := d.values[name]; ok && v != nil {
		return v, true
	}
	v, ok := d.dynamic[name]
	return v, ok && v != nil
}

// Set assigns a field. Values are not checked until Validate; the only
// error is ErrUnknownField for names the schema does not declare. Dynamic
// schemas store unknown names as dynamic fields instead.
func (d *Document) Set(name string, v any) error {
	if _, ok := d.schema.byName[name]; ok {
		if v == nil {
			delete(d.values, name)
		} else {
			d.values[name] = v
		}
		return nil
	}
	if d.schema.dynamic {
		return d.SetDynamic(name, v)
	}
	return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, d.schema.name, name)
}

// MustSet is like Set but panics on error.
func (d *Document) MustSet(name string, v any) *Document {
	if err := d.Set(name, v); err != nil {
		panic(err)
	}
	return d
}

// SetDynamic assigns an undeclared field on a dynamic schema.
func (d *Document) SetDynamic(name string, v any) error {
	if !d.schema.dynamic {
		return fmt.Errorf("%w: %s is not dynamic", ErrUnknownField, d.schema.name)
	}
	if _, ok := d.schema.byName[name]; ok {
		return fmt.Errorf("%w: %q is a declared field of %s", ErrUnknownField, name, d.schema.name)
	}
	if err := checkName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownField, err)
	}
	if v == nil {
		delete(d.dynamic, name)
		return nil
	}
	if d.dynamic == nil {
		d.dynamic = make(map[string]any)
	}
	d.dynamic[name] = v
	return nil
}

// DynamicFields returns the names of the dynamic fields, sorted.
func (d *Document) DynamicFields() []string {
	names := make([]string, 0, len(d.dynamic))
	for n := range d.dynamic {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Key returns the primary key value, or nil when unset.
func (d *Document) Key() any {
	if d.schema.pk == nil {
		return nil
	}
	return d.values[d.schema.pk.name]
}

// HasKey reports whether the document has a primary key value.
func (d *Document) HasKey() bool {
	return d.Key() != nil
}

// Equal reports whether two documents denote the same stored document: the
// same collection and primary key. Unkeyed documents are equal only to themselves.
func (d *Document) Equal(o *Document) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil || d.schema.embedded || o.schema.embedded {
		return false
	}
	if d.schema.collection != o.schema.collection || !d.HasKey() || !o.HasKey() {
		return false
	}
	a, errA := d.schema.pk.toWire(d.Key())
	b, errB := o.schema.pk.toWire(o.Key())
	return errA == nil && errB == nil && reflect.DeepEqual(a, b)
}

// Validate checks every field and returns a *ValidationError listing all
// failures, with paths such as "comments[1].content" for nested values.
// A new document moves to StateValid or StateInvalid; persisted states are kept.
func (d *Document) Validate() error {
	prev := d.state
	d.state = StateValidating

	var ve ValidationError
	d.validateInto(&ve, "")

	switch prev {
	case StateNew, StateValid, StateInvalid, StateValidating:
		if ve.HasErrors() {
			d.state = StateInvalid
		} else {
			d.state = StateValid
		}
	default:
		d.state = prev
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func (d *Document) validateInto(ve *ValidationError, prefix string) {
	for _, f := range d.schema.fields {
		f.validate(ve, d.schema.reg, joinPath(prefix, f.name), d.values[f.name])
	}
	for _, name := range d.DynamicFields() {
		if _, err := wireAny(d.dynamic[name]); err != nil {
			ve.add(joinPath(prefix, name), "%v", err)
		}
	}
}

// Clone returns a deep copy in StateNew.
func (d *Document) Clone() *Document {
	c := &Document{schema: d.schema, values: make(map[string]any, len(d.values))}
	for k, v := range d.values {
		c.values[k] = cloneValue(v)
	}
	if d.dynamic != nil {
		c.dynamic = make(map[string]any, len(d.dynamic))
		for k, v := range d.dynamic {
			c.dynamic[k] = cloneValue(v)
		}
	}
	return c
}

// Acquire marks the document as having a persistence operation in flight.
// It fails with ErrBusy when another operation already holds it.
func (d *Document) Acquire() (release func(), err error) {
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return func() { d.busy.Store(false) }, nil
}

// MarkSaved records a successful save and adopts the key the store assigned.
func (d *Document) MarkSaved(key any) {
	if key != nil && d.schema.pk != nil {
		d.values[d.schema.pk.name] = key
	}
	d.state = StateSaved
}

// MarkLoaded sets the state of a document decoded from storage.
func (d *Document) MarkLoaded() {
	d.state = StateSaved
}

// ReplaceWith overwrites the document's values with those of src, which
// must be of the same hierarchy, and marks it reloaded.
func (d *Document) ReplaceWith(src *Document) {
	d.schema = src.schema
	d.values = src.values
	d.dynamic = src.dynamic
	d.state = StateReloaded
}

// MarkDeleted records a successful delete.
func (d *Document) MarkDeleted() {
	d.state = StateDeleted
}

func (d *Document) String() string {
	if d.schema.embedded || !d.HasKey() {
		return fmt.Sprintf("%s{}", d.schema.name)
	}
	return fmt.Sprintf("%s{%v}", d.schema.name, d.Key())
}
