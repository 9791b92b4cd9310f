package store

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Ordered converts a record to an ordered BSON document with sorted keys.
// "_id" leads a document, and "$ref" then "$id" lead a reference, which is
// the order MongoDB and extended-JSON readers expect.
func Ordered(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			ri, rj := keyRank(keys[i]), keyRank(keys[j])
			if ri != rj {
				return ri < rj
			}
			return keys[i] < keys[j]
		})
		d := make(bson.D, 0, len(keys))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: Ordered(t[k])})
		}
		return d
	case []any:
		a := make(bson.A, len(t))
		for i, e := range t {
			a[i] = Ordered(e)
		}
		return a
	}
	return v
}

func keyRank(k string) int {
	switch k {
	case KeyField, "$ref":
		return 0
	case "$id":
		return 1
	}
	return 2
}

// MarshalExtJSON renders a record as relaxed extended JSON with sorted keys.
func MarshalExtJSON(rec Record) ([]byte, error) {
	data, err := bson.MarshalExtJSON(Ordered(rec), false, false)
	if err != nil {
		return nil, fmt.Errorf("marshal extended json: %w", err)
	}
	return data, nil
}

// UnmarshalExtJSON parses canonical or relaxed extended JSON into a
// normalized record.
func UnmarshalExtJSON(data []byte) (Record, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, fmt.Errorf("unmarshal extended json: %w", err)
	}
	return Normalize(d).(Record), nil
}
