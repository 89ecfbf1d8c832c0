package calculator

import "github.com/guregu/null/v6"

// MACD derives the MACD line (EMA fast - EMA slow), its signal line
// (EMA of the MACD line) and the histogram (line - signal).
func MACD(closes []null.Float, fast, slow, signal int) (line, sig, hist []null.Float) {
	line = SubSeries(EMA(closes, fast), EMA(closes, slow))
	sig = EMA(line, signal)
	hist = SubSeries(line, sig)
	return line, sig, hist
}
