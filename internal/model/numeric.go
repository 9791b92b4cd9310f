package model

import (
	"math"
	"math/big"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// asInt accepts Go integer kinds only. Floats, strings and booleans are not integers.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// asFloat accepts floats and integers.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if n, ok := asInt(v); ok {
		return float64(n), true
	}
	return 0, false
}

type decimalValue struct {
	d   bson.Decimal128
	rat *big.Rat
}

// asDecimal accepts Decimal128, numeric strings, floats and integers.
func asDecimal(v any) (decimalValue, bool) {
	var (
		d   bson.Decimal128
		err error
	)
	switch n := v.(type) {
	case bson.Decimal128:
		d = n
	case string:
		d, err = bson.ParseDecimal128(n)
	case float64:
		d, err = floatDecimal(n)
	case float32:
		d, err = floatDecimal(float64(n))
	default:
		i, ok := asInt(v)
		if !ok {
			return decimalValue{}, false
		}
		d, err = bson.ParseDecimal128(strconv.FormatInt(i, 10))
	}
	if err != nil {
		return decimalValue{}, false
	}
	r, ok := decimalRat(d)
	if !ok {
		return decimalValue{}, false
	}
	return decimalValue{d: d, rat: r}, true
}

func floatDecimal(f float64) (bson.Decimal128, error) {
	return bson.ParseDecimal128(strconv.FormatFloat(f, 'g', -1, 64))
}

// decimalRat converts a finite Decimal128 to an exact rational.
func decimalRat(d bson.Decimal128) (*big.Rat, bool) {
	coeff, exp, err := d.BigInt()
	if err != nil {
		return nil, false
	}
	r := new(big.Rat).SetInt(coeff)
	switch {
	case exp > 0:
		r.Mul(r, new(big.Rat).SetInt(pow10(exp)))
	case exp < 0:
		r.Quo(r, new(big.Rat).SetInt(pow10(-exp)))
	}
	return r, true
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// numericRat returns the exact value of v under the field kind's coercion rules.
func numericRat(kind Kind, v any) (*big.Rat, bool) {
	switch kind {
	case KindInt:
		n, ok := asInt(v)
		if !ok {
			return nil, false
		}
		return new(big.Rat).SetInt64(n), true
	case KindFloat:
		x, ok := asFloat(v)
		if !ok || math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, false
		}
		return new(big.Rat).SetFloat64(x), true
	case KindDecimal:
		d, ok := asDecimal(v)
		if !ok {
			return nil, false
		}
		return d.rat, true
	}
	return nil, false
}
