package model

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// validate checks v against f and records failures on ve. Checks run in a
// fixed order: presence, type, range, structure, choices, format. A field
// stops at its first failing check, except embedded documents, which report
// every nested failure.
func (f *Field) validate(ve *ValidationError, reg *Registry, path string, v any) {
	if isEmpty(v) {
		if f.required {
			ve.add(path, "is required")
			return
		}
		if v == nil {
			return
		}
	}

	switch f.kind {
	case KindString, KindEmail, KindURL, KindLanguage:
		s, ok := v.(string)
		if !ok {
			ve.add(path, "must be a string")
			return
		}
		if msg := f.checkString(s); msg != "" {
			ve.add(path, "%s", msg)
			return
		}
	case KindInt, KindFloat, KindDecimal:
		r, ok := numericRat(f.kind, v)
		if !ok {
			ve.add(path, "%s", numericTypeMessage(f.kind))
			return
		}
		if msg := f.checkRange(r); msg != "" {
			ve.add(path, "%s", msg)
			return
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			ve.add(path, "must be a boolean")
			return
		}
	case KindDateTime:
		if _, ok := v.(time.Time); !ok {
			ve.add(path, "must be a datetime")
			return
		}
	case KindBinary:
		b, ok := v.([]byte)
		if !ok {
			ve.add(path, "must be binary data")
			return
		}
		if f.maxBytes >= 0 && len(b) > f.maxBytes {
			ve.add(path, "must be %d bytes or fewer", f.maxBytes)
			return
		}
	case KindObjectID:
		if _, ok := asObjectID(v); !ok {
			ve.add(path, "must be an ObjectId")
			return
		}
	case KindList, KindSet:
		if !f.validateSequence(ve, reg, path, v) {
			return
		}
	case KindDict:
		if msg := checkDict(v); msg != "" {
			ve.add(path, "%s", msg)
			return
		}
	case KindMap:
		if !f.validateMap(ve, reg, path, v) {
			return
		}
	case KindEmbedded:
		f.validateEmbedded(ve, reg, path, v)
		return
	case KindReference, KindGenericReference:
		if msg := f.checkReference(reg, v); msg != "" {
			ve.add(path, "%s", msg)
			return
		}
	case KindEnum:
		n := len(ve.Errors)
		f.elem.validate(ve, reg, path, v)
		if len(ve.Errors) > n {
			return
		}
		if !containsValue(f.restrict, v) {
			ve.add(path, "must be one of %v", f.restrict)
			return
		}
	}

	if len(f.choices) > 0 && !containsValue(f.choices, v) {
		ve.add(path, "must be one of %v", f.choices)
		return
	}

	switch f.kind {
	case KindEmail:
		if !validEmail(v.(string)) {
			ve.add(path, "must be a valid e-mail address")
		}
	case KindURL:
		if !validURL(v.(string)) {
			ve.add(path, "must be a valid URL")
		}
	case KindLanguage:
		if !validLanguage(v.(string)) {
			ve.add(path, "must be a valid language tag")
		}
	}
}

// isEmpty treats nil, "" and empty collections as absent for required checks.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr:
		return rv.IsNil()
	}
	return false
}

func (f *Field) checkString(s string) string {
	n := utf8.RuneCountInString(s)
	if f.minLength >= 0 && n < f.minLength {
		return fmt.Sprintf("must be at least %d characters", f.minLength)
	}
	if f.maxLength >= 0 && n > f.maxLength {
		return fmt.Sprintf("must be %d characters or fewer", f.maxLength)
	}
	if f.pattern != nil && !f.pattern.MatchString(s) {
		return fmt.Sprintf("must match %q", f.patternText)
	}
	return ""
}

func numericTypeMessage(k Kind) string {
	switch k {
	case KindInt:
		return "must be an integer"
	case KindFloat:
		return "must be a number"
	}
	return "must be a decimal number"
}

func (f *Field) checkRange(r *big.Rat) string {
	if f.lo != nil && r.Cmp(f.lo) < 0 {
		return "must be at least " + f.loText
	}
	if f.hi != nil && r.Cmp(f.hi) > 0 {
		return "must be at most " + f.hiText
	}
	return ""
}

// asObjectID accepts an ObjectID or its 24-digit hexadecimal string.
func asObjectID(v any) (bson.ObjectID, bool) {
	switch t := v.(type) {
	case bson.ObjectID:
		return t, true
	case string:
		id, err := bson.ObjectIDFromHex(t)
		return id, err == nil
	}
	return bson.ObjectID{}, false
}

// sequence returns the elements of a slice or array. Strings and byte
// slices are not sequences.
func sequence(v any) ([]any, bool) {
	switch v.(type) {
	case string, []byte:
		return nil, false
	case []any:
		return v.([]any), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// validateSequence checks a list or set and reports the first failing
// element only. It returns false when an error was recorded.
func (f *Field) validateSequence(ve *ValidationError, reg *Registry, path string, v any) bool {
	items, ok := sequence(v)
	if !ok {
		ve.add(path, "must be a list")
		return false
	}
	for i, item := range items {
		var sub ValidationError
		f.elem.validate(&sub, reg, indexPath(path, i), item)
		if sub.HasErrors() {
			if f.elem.kind == KindEmbedded {
				ve.Errors = append(ve.Errors, sub.Errors...)
			} else {
				ve.Errors = append(ve.Errors, sub.Errors[0])
			}
			return false
		}
	}
	return true
}

// mapping returns the entries of a string-keyed map.
func mapping(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	if d, ok := v.(bson.D); ok {
		m := make(map[string]any, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

// checkKey rejects keys that the storage layer would treat as operators or paths.
func checkKey(k string) string {
	if strings.HasPrefix(k, "$") {
		return fmt.Sprintf("key %q must not start with '$'", k)
	}
	if strings.Contains(k, ".") {
		return fmt.Sprintf("key %q must not contain '.'", k)
	}
	return ""
}

func checkDict(v any) string {
	m, ok := mapping(v)
	if !ok {
		return "must be a dictionary with string keys"
	}
	for _, k := range sortedKeys(m) {
		if msg := checkKey(k); msg != "" {
			return msg
		}
		if msg := checkNested(m[k]); msg != "" {
			return msg
		}
	}
	return ""
}

func checkNested(v any) string {
	if _, ok := v.(*Document); ok {
		return ""
	}
	if m, ok := mapping(v); ok {
		return checkDict(m)
	}
	if items, ok := sequence(v); ok {
		for _, item := range items {
			if msg := checkNested(item); msg != "" {
				return msg
			}
		}
		return ""
	}
	if _, err := wireAny(v); err != nil {
		return err.Error()
	}
	return ""
}

func (f *Field) validateMap(ve *ValidationError, reg *Registry, path string, v any) bool {
	m, ok := mapping(v)
	if !ok {
		ve.add(path, "must be a map with string keys")
		return false
	}
	for _, k := range sortedKeys(m) {
		if msg := checkKey(k); msg != "" {
			ve.add(path, "%s", msg)
			return false
		}
		var sub ValidationError
		f.elem.validate(&sub, reg, joinPath(path, k), m[k])
		if sub.HasErrors() {
			ve.Errors = append(ve.Errors, sub.Errors...)
			return false
		}
	}
	return true
}

func (f *Field) validateEmbedded(ve *ValidationError, reg *Registry, path string, v any) {
	doc, ok := v.(*Document)
	if !ok || doc == nil {
		ve.add(path, "must be an embedded %s document", f.target)
		return
	}
	want, ok := reg.Lookup(f.target)
	if !ok || !doc.schema.IsA(want) {
		ve.add(path, "must be an embedded %s document, got %s", f.target, doc.schema.name)
		return
	}
	doc.validateInto(ve, path)
}

func (f *Field) checkReference(reg *Registry, v any) string {
	switch t := v.(type) {
	case *Document:
		if t == nil {
			return "must be a document reference"
		}
		if t.schema.embedded {
			return "embedded documents cannot be referenced"
		}
		if f.kind == KindReference {
			want, ok := reg.Lookup(f.target)
			if !ok || !t.schema.IsA(want) {
				return fmt.Sprintf("must reference a %s document, got %s", f.target, t.schema.name)
			}
		}
		if !t.HasKey() {
			return "referenced document must be saved before it can be referenced"
		}
		if _, err := t.schema.pk.toWire(t.Key()); err != nil {
			return fmt.Sprintf("referenced document has an invalid key: %v", err)
		}
		return ""
	case Ref:
		if t.Key == nil {
			return "reference has no key"
		}
		if f.kind == KindGenericReference {
			if t.Type == "" {
				return "generic reference must name its schema"
			}
			s, ok := reg.Lookup(t.Type)
			if !ok || s.embedded || s.collection != t.Collection {
				return fmt.Sprintf("generic reference names unknown schema %q", t.Type)
			}
			return ""
		}
		want, ok := reg.Lookup(f.target)
		if !ok || t.Collection != want.collection {
			return fmt.Sprintf("must reference a %s document", f.target)
		}
		return ""
	}
	return "must be a document reference"
}

func containsValue(set []any, v any) bool {
	for _, c := range set {
		if valuesEqual(c, v) {
			return true
		}
	}
	return false
}

// valuesEqual compares scalars, treating numbers of different Go types as
// equal when they denote the same value.
func valuesEqual(a, b any) bool {
	if ra, ok := anyRat(a); ok {
		rb, ok := anyRat(b)
		return ok && ra.Cmp(rb) == 0
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func anyRat(v any) (*big.Rat, bool) {
	switch v.(type) {
	case string, bool, nil:
		return nil, false
	}
	if r, ok := numericRat(KindFloat, v); ok {
		return r, true
	}
	if d, ok := v.(bson.Decimal128); ok {
		return decimalRat(d)
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
