package model

import (
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"
)

// SelfTarget names the schema being defined. Fields that target it are bound
// to the defining schema's name at Define time.
const SelfTarget = "self"

// Field describes one named slot of a schema: its kind and its constraints.
// A Field is immutable once its constructor returns; Define clones fields
// when it needs to bind them.
type Field struct {
	name       string
	kind       Kind
	required   bool
	primaryKey bool
	def        func() any

	minLength, maxLength int
	pattern              *regexp.Regexp
	patternText          string

	lo, hi         *big.Rat
	loText, hiText string

	choices  []any
	maxBytes int

	elem     *Field
	target   string
	ordering string
	sorted   bool
	restrict []any

	err error
}

// FieldOption configures a Field at construction time.
type FieldOption func(*Field)

func newField(name string, kind Kind, opts []FieldOption) *Field {
	f := &Field{name: name, kind: kind, minLength: -1, maxLength: -1, maxBytes: -1}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Field) fail(format string, args ...any) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: field %q: %s", ErrInvalidField, f.name, fmt.Sprintf(format, args...))
	}
}

// Required marks the field as mandatory: validation fails when it is absent or empty.
func Required() FieldOption {
	return func(f *Field) { f.required = true }
}

// PrimaryKey makes the field the document's key. It implies Required.
func PrimaryKey() FieldOption {
	return func(f *Field) {
		switch f.kind {
		case KindString, KindInt, KindObjectID, KindEmail, KindURL, KindLanguage:
		default:
			f.fail("%s fields cannot be primary keys", f.kind)
		}
		f.primaryKey = true
		f.required = true
	}
}

// Default sets a static default. Containers and embedded documents are
// copied for every new document, so instances never share them.
func Default(v any) FieldOption {
	return func(f *Field) {
		f.def = func() any { return cloneValue(v) }
	}
}

// DefaultFunc sets a default computed for every new document.
func DefaultFunc(fn func() any) FieldOption {
	return func(f *Field) { f.def = fn }
}

// MinLength requires string values to have at least n characters.
func MinLength(n int) FieldOption {
	return func(f *Field) {
		if !f.kind.IsStringLike() {
			f.fail("min_length does not apply to %s", f.kind)
		}
		f.minLength = n
	}
}

// MaxLength requires string values to have at most n characters.
func MaxLength(n int) FieldOption {
	return func(f *Field) {
		if !f.kind.IsStringLike() {
			f.fail("max_length does not apply to %s", f.kind)
		}
		f.maxLength = n
	}
}

// Pattern requires string values to match expr in full.
func Pattern(expr string) FieldOption {
	return func(f *Field) {
		if !f.kind.IsStringLike() {
			f.fail("regex does not apply to %s", f.kind)
			return
		}
		re, err := regexp.Compile(`^(?:` + expr + `)$`)
		if err != nil {
			f.fail("invalid regex %q: %v", expr, err)
			return
		}
		f.pattern = re
		f.patternText = expr
	}
}

// MinValue sets an inclusive lower bound for numeric fields.
func MinValue(v any) FieldOption {
	return func(f *Field) {
		f.lo, f.loText = f.bound("min_value", v)
	}
}

// MaxValue sets an inclusive upper bound for numeric fields.
func MaxValue(v any) FieldOption {
	return func(f *Field) {
		f.hi, f.hiText = f.bound("max_value", v)
	}
}

func (f *Field) bound(opt string, v any) (*big.Rat, string) {
	if !f.kind.IsNumeric() {
		f.fail("%s does not apply to %s", opt, f.kind)
		return nil, ""
	}
	var (
		r  *big.Rat
		ok bool
	)
	switch f.kind {
	case KindInt:
		var n int64
		if n, ok = asInt(v); ok {
			r = new(big.Rat).SetInt64(n)
		}
	case KindFloat:
		var x float64
		if x, ok = asFloat(v); ok {
			r = new(big.Rat).SetFloat64(x)
			ok = r != nil
		}
	case KindDecimal:
		var d decimalValue
		if d, ok = asDecimal(v); ok {
			r = d.rat
		}
	}
	if !ok {
		f.fail("%s %v is not a valid %s", opt, v, f.kind)
		return nil, ""
	}
	return r, fmt.Sprint(v)
}

// Choices restricts values to the given set.
func Choices(values ...any) FieldOption {
	return func(f *Field) {
		switch f.kind {
		case KindList, KindSet, KindDict, KindMap, KindEmbedded, KindReference, KindGenericReference, KindBinary:
			f.fail("choices do not apply to %s", f.kind)
			return
		}
		f.choices = append([]any(nil), values...)
	}
}

// MaxBytes limits the size of binary values.
func MaxBytes(n int) FieldOption {
	return func(f *Field) {
		if f.kind != KindBinary {
			f.fail("max_bytes does not apply to %s", f.kind)
		}
		f.maxBytes = n
	}
}

// Ordering sorts a sorted list of embedded documents by the named field.
func Ordering(name string) FieldOption {
	return func(f *Field) {
		if f.kind != KindList || !f.sorted {
			f.fail("ordering applies only to sorted lists")
		}
		f.ordering = name
	}
}

// StringField accepts text.
func StringField(name string, opts ...FieldOption) *Field {
	return newField(name, KindString, opts)
}

// IntField accepts integers.
func IntField(name string, opts ...FieldOption) *Field {
	return newField(name, KindInt, opts)
}

// FloatField accepts floating-point numbers and integers.
func FloatField(name string, opts ...FieldOption) *Field {
	return newField(name, KindFloat, opts)
}

// DecimalField accepts exact decimals. Values are held as bson.Decimal128.
func DecimalField(name string, opts ...FieldOption) *Field {
	return newField(name, KindDecimal, opts)
}

// BooleanField accepts true or false.
func BooleanField(name string, opts ...FieldOption) *Field {
	return newField(name, KindBoolean, opts)
}

// DateTimeField accepts time.Time values.
func DateTimeField(name string, opts ...FieldOption) *Field {
	return newField(name, KindDateTime, opts)
}

// BinaryField accepts byte strings.
func BinaryField(name string, opts ...FieldOption) *Field {
	return newField(name, KindBinary, opts)
}

// ObjectIDField accepts bson.ObjectID values or their 24-hex-digit form.
func ObjectIDField(name string, opts ...FieldOption) *Field {
	return newField(name, KindObjectID, opts)
}

// EmailField accepts e-mail addresses.
func EmailField(name string, opts ...FieldOption) *Field {
	return newField(name, KindEmail, opts)
}

// URLField accepts absolute http, https, ftp and ftps URLs.
func URLField(name string, opts ...FieldOption) *Field {
	return newField(name, KindURL, opts)
}

// LanguageField accepts well-formed BCP 47 language tags.
func LanguageField(name string, opts ...FieldOption) *Field {
	return newField(name, KindLanguage, opts)
}

// DictField accepts string-keyed maps of arbitrary values.
func DictField(name string, opts ...FieldOption) *Field {
	return newField(name, KindDict, opts)
}

// ListField holds an ordered sequence of elem values.
func ListField(name string, elem *Field, opts ...FieldOption) *Field {
	return containerField(name, KindList, elem, false, opts)
}

// SortedListField is a ListField whose stored form is kept sorted, by the
// Ordering field for embedded documents and by natural order otherwise.
func SortedListField(name string, elem *Field, opts ...FieldOption) *Field {
	return containerField(name, KindList, elem, true, opts)
}

// SetField holds unique elem values.
func SetField(name string, elem *Field, opts ...FieldOption) *Field {
	return containerField(name, KindSet, elem, false, opts)
}

// MapField holds string-keyed values that all satisfy value.
func MapField(name string, value *Field, opts ...FieldOption) *Field {
	return containerField(name, KindMap, value, false, opts)
}

func containerField(name string, kind Kind, elem *Field, sorted bool, opts []FieldOption) *Field {
	f := &Field{name: name, kind: kind, minLength: -1, maxLength: -1, maxBytes: -1, elem: elem, sorted: sorted}
	for _, opt := range opts {
		opt(f)
	}
	switch {
	case elem == nil:
		f.fail("%s requires an element field", kind)
	case elem.err != nil:
		f.fail("element: %v", elem.err)
	case elem.primaryKey:
		f.fail("element fields cannot be primary keys")
	}
	return f
}

// EmbeddedDocumentField holds a document of the named embedded schema or
// one of its registered subclasses.
func EmbeddedDocumentField(name, target string, opts ...FieldOption) *Field {
	f := newField(name, KindEmbedded, nil)
	f.target = target
	for _, opt := range opts {
		opt(f)
	}
	if target == "" {
		f.fail("embedded field requires a target schema")
	}
	return f
}

// ReferenceField points at a saved document of the named top-level schema.
// Use SelfTarget to reference the schema being defined.
func ReferenceField(name, target string, opts ...FieldOption) *Field {
	f := newField(name, KindReference, nil)
	f.target = target
	for _, opt := range opts {
		opt(f)
	}
	if target == "" {
		f.fail("reference field requires a target schema")
	}
	return f
}

// GenericReferenceField points at a saved document of any top-level schema.
func GenericReferenceField(name string, opts ...FieldOption) *Field {
	return newField(name, KindGenericReference, opts)
}

// EnumerationField accepts values of inner that also belong to restrict.
func EnumerationField(name string, inner *Field, restrict []any, opts ...FieldOption) *Field {
	f := containerField(name, KindEnum, inner, false, opts)
	f.restrict = append([]any(nil), restrict...)
	if len(restrict) == 0 {
		f.fail("enumeration requires at least one allowed value")
	}
	return f
}

// Name returns the field's name.
func (f *Field) Name() string { return f.name }

// Kind returns the field's kind.
func (f *Field) Kind() Kind { return f.kind }

// IsRequired reports whether the field is required.
func (f *Field) IsRequired() bool { return f.required }

// IsPrimaryKey reports whether the field is the document key.
func (f *Field) IsPrimaryKey() bool { return f.primaryKey }

// Elem returns the element field of a list, set, map or enumeration.
func (f *Field) Elem() *Field { return f.elem }

// Target returns the schema named by an embedded or reference field.
func (f *Field) Target() string { return f.target }

// IsSorted reports whether a list field keeps its stored form sorted.
func (f *Field) IsSorted() bool { return f.sorted }

// Err returns the first construction error, if any.
func (f *Field) Err() error { return f.err }

// Describe returns a short human-readable summary of the field.
func (f *Field) Describe() string {
	var b strings.Builder
	b.WriteString(string(f.kind))
	if f.elem != nil {
		fmt.Fprintf(&b, "<%s>", f.elem.Describe())
	}
	if f.target != "" {
		fmt.Fprintf(&b, "(%s)", f.target)
	}
	if f.primaryKey {
		b.WriteString(" primary_key")
	} else if f.required {
		b.WriteString(" required")
	}
	return b.String()
}

func (f *Field) defaultValue() any {
	if f.def == nil {
		return nil
	}
	return f.def()
}

// withName returns a copy of f carrying a different name.
func (f *Field) withName(name string) *Field {
	c := *f
	c.name = name
	return &c
}

// bindSelf returns f with every SelfTarget replaced by schema. It returns f
// itself when nothing needs binding.
func (f *Field) bindSelf(schema string) *Field {
	var elem *Field
	if f.elem != nil {
		elem = f.elem.bindSelf(schema)
	}
	if f.target != SelfTarget && elem == f.elem {
		return f
	}
	c := *f
	c.elem = elem
	if c.target == SelfTarget {
		c.target = schema
	}
	return &c
}

// walk visits f and every nested element field.
func (f *Field) walk(fn func(*Field)) {
	fn(f)
	if f.elem != nil {
		f.elem.walk(fn)
	}
}

// cloneValue deep-copies container values so defaults are never shared.
// Embedded documents are copied; referenced documents are shared.
func cloneValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *Document:
		if t == nil || !t.schema.embedded {
			return t
		}
		return t.Clone()
	case []byte:
		return append([]byte(nil), t...)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(cloneElem(rv.Index(i)))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneElem(iter.Value()))
		}
		return out.Interface()
	}
	return v
}

func cloneElem(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Interface && v.IsNil() {
		return v
	}
	c := cloneValue(v.Interface())
	if c == nil {
		return reflect.Zero(v.Type())
	}
	return reflect.ValueOf(c).Convert(v.Type())
}
