package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MarshalRecord encodes a record as a BSON document.
func MarshalRecord(rec Record) ([]byte, error) {
	data, err := bson.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes a BSON document into a normalized record.
func UnmarshalRecord(data []byte) (Record, error) {
	var d bson.D
	if err := bson.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return Normalize(d).(Record), nil
}

// Normalize converts values produced by the BSON decoder into the record
// value set: documents become maps, arrays become slices, datetimes become
// UTC times and 32-bit integers widen to int64.
func Normalize(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(Record, len(t))
		for _, e := range t {
			m[e.Key] = Normalize(e.Value)
		}
		return m
	case bson.M:
		m := make(Record, len(t))
		for k, e := range t {
			m[k] = Normalize(e)
		}
		return m
	case map[string]any:
		m := make(Record, len(t))
		for k, e := range t {
			m[k] = Normalize(e)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case bson.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case bson.Binary:
		return t.Data
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float32:
		return float64(t)
	case bson.Decimal128:
		return t.String()
	}
	return v
}

// KeyString renders a primary key as a string that is unique across key
// types, for backends that address documents by string.
func KeyString(key any) (string, error) {
	switch k := key.(type) {
	case bson.ObjectID:
		return "oid:" + k.Hex(), nil
	case string:
		return "s:" + k, nil
	case int64:
		return "i:" + strconv.FormatInt(k, 10), nil
	case int32:
		return "i:" + strconv.FormatInt(int64(k), 10), nil
	case int:
		return "i:" + strconv.Itoa(k), nil
	}
	return "", fmt.Errorf("unsupported key type %T", key)
}

// ParseKeyString reverses KeyString.
func ParseKeyString(s string) (any, error) {
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("malformed key %q", s)
	}
	switch prefix {
	case "oid":
		return bson.ObjectIDFromHex(rest)
	case "s":
		return rest, nil
	case "i":
		return strconv.ParseInt(rest, 10, 64)
	}
	return nil, fmt.Errorf("malformed key %q", s)
}

// WithKey returns a shallow copy of rec with "_id" set to key.
func WithKey(rec Record, key any) Record {
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out[KeyField] = key
	return out
}

// SortByKey orders records by their KeyString form.
func SortByKey(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, _ := KeyString(recs[i][KeyField])
		b, _ := KeyString(recs[j][KeyField])
		return a < b
	})
}
