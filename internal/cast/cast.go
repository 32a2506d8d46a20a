// Package cast converts loosely typed values (decoded JSON or YAML) into the
// narrow types the backends expect.
package cast

import "math"

// ToFloat64 converts any Go numeric value to float64.
func ToFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok := toInt64Exact(v); ok {
		return float64(i), true
	}
	if u, ok := v.(uint64); ok {
		return float64(u), true
	}
	if u, ok := v.(uint); ok {
		return float64(u), true
	}
	return 0, false
}

// ToInt64 converts a numeric value to int64. Unsigned values above math.MaxInt64 clamp;
// floats are truncated, NaN and Inf are rejected.
func ToInt64(v any) (int64, bool) {
	if i, ok := toInt64Exact(v); ok {
		return i, true
	}
	switch x := v.(type) {
	case uint:
		return clampUint(uint64(x)), true
	case uint64:
		return clampUint(x), true
	case float64:
		return floatToInt64(x)
	case float32:
		return floatToInt64(float64(x))
	default:
		return 0, false
	}
}

// NarrowInt32 narrows v to int32. ok is false when v does not fit.
func NarrowInt32(v int64) (int32, bool) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, false
	}
	return int32(v), true
}

// ToInt converts a numeric value to int, rejecting values outside the int range.
func ToInt(v any) (int, bool) {
	i, ok := ToInt64(v)
	if !ok || i < math.MinInt || i > math.MaxInt {
		return 0, false
	}
	return int(i), true
}

func toInt64Exact(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint8:
		return int64(x), true
	default:
		return 0, false
	}
}

func clampUint(u uint64) int64 {
	if u > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(u)
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
