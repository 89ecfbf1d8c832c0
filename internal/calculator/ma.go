package calculator

import "github.com/guregu/null/v6"

// RollingMean computes the trailing arithmetic mean over window cells.
// A cell is defined only when all window inputs are defined, so the first
// window-1 cells are always undefined.
func RollingMean(values []null.Float, window int) []null.Float {
	out := make([]null.Float, len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		sum, ok := windowSum(values[i-window+1 : i+1])
		if !ok {
			continue
		}
		out[i] = Finite(sum / float64(window))
	}
	return out
}

// EMA applies the recursive exponential smoothing with α = 2/(span+1):
//
//	ema[0] = x[0]
//	ema[t] = α·x[t] + (1-α)·ema[t-1]
//
// Leading undefined inputs stay undefined and the first defined value seeds
// the recurrence. An undefined input later on yields an undefined cell and
// the recurrence carries its last state past it.
func EMA(values []null.Float, span int) []null.Float {
	out := make([]null.Float, len(values))
	if span <= 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)

	var prev float64
	seeded := false
	for i, v := range values {
		if !v.Valid {
			continue
		}
		if !seeded {
			prev = v.Float64
			seeded = true
		} else {
			prev = alpha*v.Float64 + (1-alpha)*prev
		}
		out[i] = Finite(prev)
	}
	return out
}

func windowSum(window []null.Float) (float64, bool) {
	sum := 0.0
	for _, v := range window {
		if !v.Valid {
			return 0, false
		}
		sum += v.Float64
	}
	return sum, true
}
