package blackboard

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"reflect"
)

var (
	// ErrMissing indicates the variable does not exist in the store.
	ErrMissing = errors.New("blackboard: variable does not exist")
	// ErrNotNumeric indicates the variable exists but holds a non-numeric value.
	ErrNotNumeric = errors.New("blackboard: variable is not numeric")
)

// Increment adds delta to the numeric value stored under key.
//
// The key must already exist and hold an integer or floating point value;
// otherwise the store is left untouched and an error wrapping ErrMissing or
// ErrNotNumeric is returned. Integer values stay integers when delta is
// integral, and become float64 otherwise.
func Increment(store Store, key string, delta float64) (any, error) {
	current, ok := store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissing, key)
	}
	next, err := Add(current, delta)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, key)
	}
	store.Set(key, next)
	return next, nil
}

// Add returns value+delta, preserving the kind of value where it can. An
// integer sum that would overflow its type becomes float64.
func Add(value any, delta float64) (any, error) {
	integral := delta == math.Trunc(delta) && !math.IsInf(delta, 0)
	switch v := value.(type) {
	case int:
		if sum, ok := addInt(v, delta, integral, bits.UintSize); ok {
			return sum, nil
		}
		return float64(v) + delta, nil
	case int64:
		if sum, ok := addInt(v, delta, integral, 64); ok {
			return sum, nil
		}
		return float64(v) + delta, nil
	case int32:
		if sum, ok := addInt(v, delta, integral, 32); ok {
			return sum, nil
		}
		return float64(v) + delta, nil
	case float32:
		return v + float32(delta), nil
	case float64:
		return v + delta, nil
	}
	if f, ok := AsFloat(value); ok {
		return f + delta, nil
	}
	return nil, fmt.Errorf("%w (%T)", ErrNotNumeric, value)
}

// addInt adds an integral delta to a size-bit signed integer, failing if
// delta or the sum does not fit.
func addInt[T int | int32 | int64](v T, delta float64, integral bool, size int) (T, bool) {
	limit := math.Ldexp(1, size-1)
	if !integral || delta < -limit || delta >= limit {
		return 0, false
	}
	d := T(delta)
	sum := v + d
	if (d > 0 && sum < v) || (d < 0 && sum > v) {
		return 0, false
	}
	return sum, true
}

// AsFloat converts any Go integer or float value to float64.
func AsFloat(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// Equal compares two stored values. Numbers compare by value regardless of
// their Go type (so 123 equals 123.0); everything else uses reflect.DeepEqual.
func Equal(a, b any) bool {
	if fa, ok := AsFloat(a); ok {
		if fb, ok := AsFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}
