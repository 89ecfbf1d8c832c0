package calculator

import "github.com/guregu/null/v6"

// RSI computes the relative strength index over a close column.
//
// Per-step deltas are split into gains and losses and each is smoothed with
// EMA(span=period). The delta of the first row counts as no movement. When
// the smoothed loss is zero the index is 100 if there was any gain and
// undefined if there was no movement at all.
func RSI(closes []null.Float, period int) []null.Float {
	n := len(closes)
	out := make([]null.Float, n)
	if period <= 0 || n == 0 {
		return out
	}

	delta := Diff(closes)
	delta[0] = null.FloatFrom(0)

	gains := make([]null.Float, n)
	losses := make([]null.Float, n)
	for i, d := range delta {
		if !d.Valid {
			continue
		}
		gains[i] = null.FloatFrom(max(d.Float64, 0))
		losses[i] = null.FloatFrom(max(-d.Float64, 0))
	}

	avgGain := EMA(gains, period)
	avgLoss := EMA(losses, period)

	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		if !g.Valid || !l.Valid {
			continue
		}
		if l.Float64 == 0 {
			if g.Float64 > 0 {
				out[i] = null.FloatFrom(100)
			}
			continue
		}
		rs := g.Float64 / l.Float64
		out[i] = Finite(100 - 100/(1+rs))
	}
	return out
}
