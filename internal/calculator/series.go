// Package calculator holds the numeric primitives of the feature engine.
//
// Every function works on []null.Float so undefined cells propagate
// explicitly: an operation with an undefined operand, a zero denominator or a
// non-finite result yields an undefined cell instead of NaN or a panic.
package calculator

import (
	"math"

	"github.com/guregu/null/v6"
)

// Finite wraps v, mapping NaN and ±Inf to an undefined cell.
func Finite(v float64) null.Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

// FromFloats converts a raw column.
func FromFloats(values []float64) []null.Float {
	out := make([]null.Float, len(values))
	for i, v := range values {
		out[i] = Finite(v)
	}
	return out
}

// FromInts converts an integer column such as volume.
func FromInts(values []int64) []null.Float {
	out := make([]null.Float, len(values))
	for i, v := range values {
		out[i] = null.FloatFrom(float64(v))
	}
	return out
}

// Sub returns a - b.
func Sub(a, b null.Float) null.Float {
	if !a.Valid || !b.Valid {
		return null.Float{}
	}
	return Finite(a.Float64 - b.Float64)
}

// Div returns a / b, undefined when b is zero.
func Div(a, b null.Float) null.Float {
	if !a.Valid || !b.Valid || b.Float64 == 0 {
		return null.Float{}
	}
	return Finite(a.Float64 / b.Float64)
}

// SubSeries subtracts two aligned columns element-wise.
func SubSeries(a, b []null.Float) []null.Float {
	out := make([]null.Float, len(a))
	for i := range a {
		out[i] = Sub(a[i], b[i])
	}
	return out
}

// DivSeries divides two aligned columns element-wise.
func DivSeries(a, b []null.Float) []null.Float {
	out := make([]null.Float, len(a))
	for i := range a {
		out[i] = Div(a[i], b[i])
	}
	return out
}

// Diff returns values[t] - values[t-1]; the first cell is undefined.
func Diff(values []null.Float) []null.Float {
	out := make([]null.Float, len(values))
	for i := 1; i < len(values); i++ {
		out[i] = Sub(values[i], values[i-1])
	}
	return out
}

// PctChange returns (v[t] - v[t-periods]) / v[t-periods].
// The first periods cells are undefined.
func PctChange(values []null.Float, periods int) []null.Float {
	out := make([]null.Float, len(values))
	if periods <= 0 {
		return out
	}
	for i := periods; i < len(values); i++ {
		prev := values[i-periods]
		out[i] = Div(Sub(values[i], prev), prev)
	}
	return out
}
