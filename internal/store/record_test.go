package store

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestKeyString_RoundTrip(t *testing.T) {
	oid := bson.NewObjectID()
	for _, tc := range []struct {
		key  any
		want any
		str  string
	}{
		{oid, oid, "oid:" + oid.Hex()},
		{"abc", "abc", "s:abc"},
		{"", "", "s:"},
		{int64(-7), int64(-7), "i:-7"},
		{42, int64(42), "i:42"},
	} {
		s, err := KeyString(tc.key)
		if err != nil {
			t.Fatalf("KeyString(%v): %v", tc.key, err)
		}
		if s != tc.str {
			t.Errorf("KeyString(%v) = %q, want %q", tc.key, s, tc.str)
		}
		back, err := ParseKeyString(s)
		if err != nil {
			t.Fatalf("ParseKeyString(%q): %v", s, err)
		}
		if back != tc.want {
			t.Errorf("ParseKeyString(%q) = %v (%T), want %v", s, back, back, tc.want)
		}
	}
}

func TestKeyString_Unsupported(t *testing.T) {
	if _, err := KeyString(1.5); err == nil {
		t.Error("KeyString(1.5) succeeded, want error")
	}
	if _, err := ParseKeyString("nocolon"); err == nil {
		t.Error("ParseKeyString(nocolon) succeeded, want error")
	}
}

func TestMarshalRecord_Normalizes(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	data, err := MarshalRecord(Record{
		"n":    int64(3),
		"t":    at,
		"nest": map[string]any{"a": []any{int64(1), "x"}},
	})
	if err != nil {
		t.Fatalf("MarshalRecord: %v", err)
	}
	rec, err := UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("UnmarshalRecord: %v", err)
	}
	if rec["n"] != int64(3) {
		t.Errorf("n = %v (%T), want int64 3", rec["n"], rec["n"])
	}
	if got, ok := rec["t"].(time.Time); !ok || !got.Equal(at) {
		t.Errorf("t = %v, want %v", rec["t"], at)
	}
	nest, ok := rec["nest"].(map[string]any)
	if !ok {
		t.Fatalf("nest = %T, want map[string]any", rec["nest"])
	}
	list, ok := nest["a"].([]any)
	if !ok || len(list) != 2 || list[0] != int64(1) || list[1] != "x" {
		t.Errorf("nest.a = %#v", nest["a"])
	}
}

func TestNormalize_BSONValues(t *testing.T) {
	dec, _ := bson.ParseDecimal128("1.50")
	got := Normalize(bson.D{
		{Key: "i", Value: int32(5)},
		{Key: "d", Value: dec},
		{Key: "b", Value: bson.Binary{Data: []byte{1}}},
		{Key: "m", Value: bson.M{"x": bson.A{int32(1)}}},
	}).(Record)
	if got["i"] != int64(5) {
		t.Errorf("i = %#v", got["i"])
	}
	if got["d"] != "1.50" {
		t.Errorf("d = %#v", got["d"])
	}
	if b, ok := got["b"].([]byte); !ok || len(b) != 1 {
		t.Errorf("b = %#v", got["b"])
	}
	m := got["m"].(Record)
	if xs := m["x"].([]any); xs[0] != int64(1) {
		t.Errorf("m.x = %#v", m["x"])
	}
}
