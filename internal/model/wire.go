package model

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Stored values use a closed set of Go types: nil, string, int64, float64,
// bool, time.Time (UTC, millisecond precision), []byte, bson.ObjectID,
// []any and map[string]any. Decimals are stored as their canonical string.

// Encode converts a top-level document to its stored record. The primary
// key is written under "_id" and the concrete schema under "_cls" when the
// hierarchy allows inheritance. Unset fields are omitted.
func Encode(d *Document) (map[string]any, error) {
	if d.schema.embedded {
		return nil, fmt.Errorf("%w: %s", ErrNotTopLevel, d.schema.name)
	}
	return d.encode()
}

func (d *Document) encode() (map[string]any, error) {
	rec := make(map[string]any, len(d.values)+len(d.dynamic)+1)
	if d.schema.writesClass() {
		rec[WireClass] = d.schema.name
	}
	for _, f := range d.schema.fields {
		v, ok := d.values[f.name]
		if !ok || v == nil {
			continue
		}
		w, err := f.toWire(v)
		if err != nil {
			return nil, err
		}
		rec[wireName(f)] = w
	}
	for name, v := range d.dynamic {
		w, err := wireAny(v)
		if err != nil {
			return nil, &CoercionError{Field: name, Value: v, Reason: err.Error()}
		}
		rec[name] = w
	}
	return rec, nil
}

// Decode builds a document of schema s, or of the subclass named by the
// record's "_cls", from a stored record. Values are decoded leniently:
// anything that does not fit its field is kept as-is so Validate reports it.
func Decode(s *Schema, rec map[string]any) (*Document, error) {
	if cls, ok := rec[WireClass].(string); ok && cls != s.name {
		sub, found := s.reg.Lookup(cls)
		if !found {
			return nil, fmt.Errorf("%w: stored type %q", ErrUnknownSchema, cls)
		}
		if !sub.IsA(s) {
			return nil, fmt.Errorf("%w: %q is not a %s", ErrIncompatibleCls, cls, s.name)
		}
		s = sub
	}
	d := newDocument(s)
	for _, f := range s.fields {
		w, ok := rec[wireName(f)]
		if !ok {
			continue
		}
		if w == nil {
			delete(d.values, f.name)
			continue
		}
		d.values[f.name] = f.fromWire(s.reg, w)
	}
	if s.dynamic {
		for k, w := range rec {
			if k == WireKey || k == WireClass {
				continue
			}
			if _, declared := s.byName[k]; declared || w == nil {
				continue
			}
			if d.dynamic == nil {
				d.dynamic = make(map[string]any)
			}
			d.dynamic[k] = w
		}
	}
	return d, nil
}

func (f *Field) coerceErr(v any, reason string) error {
	return &CoercionError{Field: f.name, Kind: f.kind, Value: v, Reason: reason}
}

// ToWire converts a native value to its stored form.
func (f *Field) ToWire(v any) (any, error) {
	return f.toWire(v)
}

func (f *Field) toWire(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.kind {
	case KindString, KindEmail, KindURL, KindLanguage:
		s, ok := v.(string)
		if !ok {
			return nil, f.coerceErr(v, "not a string")
		}
		return s, nil
	case KindInt:
		n, ok := asInt(v)
		if !ok {
			return nil, f.coerceErr(v, "not an integer")
		}
		return n, nil
	case KindFloat:
		x, ok := asFloat(v)
		if !ok {
			return nil, f.coerceErr(v, "not a number")
		}
		return x, nil
	case KindDecimal:
		d, ok := asDecimal(v)
		if !ok {
			return nil, f.coerceErr(v, "not a decimal")
		}
		return d.d.String(), nil
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, f.coerceErr(v, "not a boolean")
		}
		return b, nil
	case KindDateTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, f.coerceErr(v, "not a time")
		}
		return WireTime(t), nil
	case KindBinary:
		b, ok := v.([]byte)
		if !ok {
			return nil, f.coerceErr(v, "not binary")
		}
		return append([]byte(nil), b...), nil
	case KindObjectID:
		id, ok := asObjectID(v)
		if !ok {
			return nil, f.coerceErr(v, "not an ObjectId")
		}
		return id, nil
	case KindList, KindSet:
		return f.sequenceToWire(v)
	case KindDict:
		m, ok := mapping(v)
		if !ok {
			return nil, f.coerceErr(v, "not a dictionary")
		}
		return wireAny(m)
	case KindMap:
		m, ok := mapping(v)
		if !ok {
			return nil, f.coerceErr(v, "not a map")
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			w, err := f.elem.toWire(item)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	case KindEmbedded:
		doc, ok := v.(*Document)
		if !ok || doc == nil || !doc.schema.embedded {
			return nil, f.coerceErr(v, "not an embedded document")
		}
		return doc.encode()
	case KindReference, KindGenericReference:
		return f.refToWire(v)
	case KindEnum:
		return f.elem.toWire(v)
	}
	return nil, f.coerceErr(v, "unknown kind")
}

// WireTime truncates t to the millisecond precision of stored datetimes, in UTC.
func WireTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func (f *Field) refToWire(v any) (any, error) {
	var r Ref
	switch t := v.(type) {
	case *Document:
		var err error
		if r, err = RefTo(t); err != nil {
			return nil, err
		}
	case Ref:
		r = t
	default:
		return nil, f.coerceErr(v, "not a document reference")
	}
	if f.kind == KindReference {
		r.Type = ""
	} else if r.Type == "" {
		return nil, f.coerceErr(v, "generic reference without a schema name")
	}
	return r.Wire(), nil
}

func (f *Field) sequenceToWire(v any) (any, error) {
	items, ok := sequence(v)
	if !ok {
		return nil, f.coerceErr(v, "not a list")
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		w, err := f.elem.toWire(item)
		if err != nil {
			return nil, err
		}
		if f.kind == KindSet && containsWire(out, w) {
			continue
		}
		out = append(out, w)
	}
	if f.sorted {
		key := func(w any) any { return w }
		if f.ordering != "" {
			key = func(w any) any {
				if m, ok := w.(map[string]any); ok {
					return m[f.ordering]
				}
				return nil
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return compareWire(key(out[i]), key(out[j])) < 0
		})
	}
	return out, nil
}

func containsWire(items []any, w any) bool {
	for _, item := range items {
		if reflect.DeepEqual(item, w) {
			return true
		}
	}
	return false
}

// compareWire orders stored scalars: nil, then numbers, strings, booleans,
// times and ObjectIDs. Values of unrelated types compare by that rank.
func compareWire(a, b any) int {
	ra, rb := wireRank(a), wireRank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case int64, float64:
		fa, _ := asFloat(x)
		fb, _ := asFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		return x.Compare(b.(time.Time))
	case bson.ObjectID:
		y := b.(bson.ObjectID)
		return bytes.Compare(x[:], y[:])
	}
	return 0
}

func wireRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	case time.Time:
		return 4
	case bson.ObjectID:
		return 5
	}
	return 6
}

// wireAny converts an untyped value, as held by dict and dynamic fields,
// to its stored form.
func wireAny(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int64, float64, bson.ObjectID:
		return t, nil
	case float32:
		return float64(t), nil
	case time.Time:
		return WireTime(t), nil
	case []byte:
		return append([]byte(nil), t...), nil
	case bson.Decimal128:
		return t.String(), nil
	case *Document:
		if t.schema.embedded {
			return t.encode()
		}
		r, err := RefTo(t)
		if err != nil {
			return nil, err
		}
		return r.Wire(), nil
	case Ref:
		return t.Wire(), nil
	}
	if n, ok := asInt(v); ok {
		return n, nil
	}
	if m, ok := mapping(v); ok {
		out := make(map[string]any, len(m))
		for k, item := range m {
			if msg := checkKey(k); msg != "" {
				return nil, fmt.Errorf("%s", msg)
			}
			w, err := wireAny(item)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	}
	if items, ok := sequence(v); ok {
		out := make([]any, len(items))
		for i, item := range items {
			w, err := wireAny(item)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

// FromWire converts a stored value back to its native form.
func (f *Field) FromWire(reg *Registry, w any) any {
	return f.fromWire(reg, w)
}

func (f *Field) fromWire(reg *Registry, w any) any {
	if w == nil {
		return nil
	}
	switch f.kind {
	case KindInt:
		switch n := w.(type) {
		case int64:
			return n
		case int32:
			return int64(n)
		case float64:
			if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
				return int64(n)
			}
		}
	case KindFloat:
		if x, ok := asFloat(w); ok {
			return x
		}
	case KindDecimal:
		if d, ok := asDecimal(w); ok {
			return d.d
		}
	case KindDateTime:
		if dt, ok := w.(bson.DateTime); ok {
			return dt.Time().UTC()
		}
	case KindBinary:
		if b, ok := w.(bson.Binary); ok {
			return b.Data
		}
	case KindList, KindSet:
		items, ok := sequence(w)
		if !ok {
			return w
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			v := f.elem.fromWire(reg, item)
			if f.kind == KindSet && containsNative(out, v) {
				continue
			}
			out = append(out, v)
		}
		return out
	case KindMap:
		m, ok := mapping(w)
		if !ok {
			return w
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = f.elem.fromWire(reg, item)
		}
		return out
	case KindEmbedded:
		m, ok := mapping(w)
		if !ok {
			return w
		}
		s, ok := reg.Lookup(f.target)
		if !ok {
			return w
		}
		doc, err := Decode(s, m)
		if err != nil {
			return w
		}
		return doc
	case KindReference, KindGenericReference:
		m, ok := mapping(w)
		if !ok {
			return w
		}
		r, ok := RefFromWire(m)
		if !ok {
			return w
		}
		if f.kind == KindReference && r.Type == "" {
			if s, ok := reg.Lookup(f.target); ok {
				r.Type = s.name
			}
		}
		return r
	case KindEnum:
		return f.elem.fromWire(reg, w)
	}
	return w
}

func containsNative(items []any, v any) bool {
	for _, item := range items {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}
