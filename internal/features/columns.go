package features

import "fmt"

// Fixed column names.
const (
	ColMACD       = "macd"
	ColMACDSignal = "macd_signal"
	ColMACDHist   = "macd_hist"
)

func ReturnColumn(h int) string      { return fmt.Sprintf("return_%dd", h) }
func SMAColumn(w int) string         { return fmt.Sprintf("sma_%d", w) }
func EMAColumn(w int) string         { return fmt.Sprintf("ema_%d", w) }
func RSIColumn(p int) string         { return fmt.Sprintf("rsi_%d", p) }
func VolatilityColumn(w int) string  { return fmt.Sprintf("volatility_%dd", w) }
func VolumeSMAColumn(w int) string   { return fmt.Sprintf("volume_sma_%d", w) }
func VolumeRatioColumn(w int) string { return fmt.Sprintf("volume_ratio_%d", w) }

// Columns lists every column ComputeAll produces for p, in output order.
func Columns(p Params) []string {
	var cols []string
	for _, h := range p.Horizons {
		cols = append(cols, ReturnColumn(h))
	}
	for _, w := range p.Windows {
		cols = append(cols, SMAColumn(w))
	}
	for _, w := range p.Windows {
		cols = append(cols, EMAColumn(w))
	}
	cols = append(cols, RSIColumn(p.RSIPeriod), ColMACD, ColMACDSignal, ColMACDHist)
	for _, w := range p.Windows {
		cols = append(cols, VolatilityColumn(w))
	}
	for _, w := range p.Windows {
		cols = append(cols, VolumeSMAColumn(w), VolumeRatioColumn(w))
	}
	return cols
}
