package cast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    any
		want float64
		ok   bool
	}{
		{"float64", 1.5, 1.5, true},
		{"float32", float32(2.5), 2.5, true},
		{"int", 3, 3, true},
		{"int32", int32(5), 5, true},
		{"uint64", uint64(12), 12, true},
		{"uint", uint(8), 8, true},
		{"string", "1.0", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ToFloat64(tt.v)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestToInt64(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    any
		want int64
		ok   bool
	}{
		{"int", 2, 2, true},
		{"uint8", uint8(7), 7, true},
		{"uint64 overflow clamps", uint64(math.MaxUint64), math.MaxInt64, true},
		{"float truncates", 3.9, 3, true},
		{"NaN", math.NaN(), 0, false},
		{"Inf", math.Inf(1), 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ToInt64(tt.v)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNarrowInt32(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    int64
		want int32
		ok   bool
	}{
		{"zero", 0, 0, true},
		{"max", math.MaxInt32, math.MaxInt32, true},
		{"min", math.MinInt32, math.MinInt32, true},
		{"above max", math.MaxInt32 + 1, 0, false},
		{"below min", math.MinInt32 - 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NarrowInt32(tt.v)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToInt(t *testing.T) {
	t.Parallel()
	got, ok := ToInt(float64(40))
	assert.True(t, ok)
	assert.Equal(t, 40, got)

	_, ok = ToInt("40")
	assert.False(t, ok)
}
