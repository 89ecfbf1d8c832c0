package calculator

import (
	"math"

	"github.com/guregu/null/v6"
)

// RollingStd computes the trailing sample standard deviation (n-1
// denominator) over window cells. Windows shorter than two observations or
// containing an undefined input are undefined.
func RollingStd(values []null.Float, window int) []null.Float {
	out := make([]null.Float, len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		sum, ok := windowSum(w)
		if !ok {
			continue
		}
		mean := sum / float64(window)
		ss := 0.0
		for _, v := range w {
			d := v.Float64 - mean
			ss += d * d
		}
		out[i] = Finite(math.Sqrt(ss / float64(window-1)))
	}
	return out
}
