// Package features derives the technical feature catalogue from a single
// ticker's price series. The engine is stateless: every method is a pure
// function of its input series and the parameters fixed at construction.
package features

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"quantamental/internal/calculator"
	"quantamental/internal/model"
)

// MACD periods are conventional constants, not configuration.
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// Params are the tunable window/period sets of the engine.
type Params struct {
	Horizons  []int // return horizons
	Windows   []int // shared by SMA, EMA, volatility and volume features
	RSIPeriod int
}

// Validate checks that every window is positive and unique within its set.
func (p Params) Validate() error {
	if err := checkSet("horizons", p.Horizons); err != nil {
		return err
	}
	if err := checkSet("windows", p.Windows); err != nil {
		return err
	}
	if p.RSIPeriod <= 0 {
		return fmt.Errorf("rsi period must be positive, got %d", p.RSIPeriod)
	}
	return nil
}

func checkSet(name string, values []int) error {
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		if v <= 0 {
			return fmt.Errorf("%s: must be positive, got %d", name, v)
		}
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s: duplicate value %d", name, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// Engine computes feature tables.
type Engine struct {
	params Params
	logger zerolog.Logger
}

// NewEngine validates p and returns an engine holding a private copy of it.
func NewEngine(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("feature params: %w", err)
	}
	return &Engine{
		params: Params{
			Horizons:  slices.Clone(p.Horizons),
			Windows:   slices.Clone(p.Windows),
			RSIPeriod: p.RSIPeriod,
		},
		logger: log.With().Str("component", "features").Logger(),
	}, nil
}

// Params returns a copy of the engine parameters.
func (e *Engine) Params() Params {
	return Params{
		Horizons:  slices.Clone(e.params.Horizons),
		Windows:   slices.Clone(e.params.Windows),
		RSIPeriod: e.params.RSIPeriod,
	}
}

// Returns computes return_{h}d for each configured horizon.
func (e *Engine) Returns(s model.PriceSeries) *model.FeatureTable {
	ft := model.NewFeatureTable(s.Ticker, s.Dates())
	closes := calculator.FromFloats(s.Closes())
	for _, h := range e.params.Horizons {
		mustAdd(ft, ReturnColumn(h), calculator.PctChange(closes, h))
	}
	return ft
}

// SMA computes sma_{w} for each configured window.
func (e *Engine) SMA(s model.PriceSeries) *model.FeatureTable {
	ft := model.NewFeatureTable(s.Ticker, s.Dates())
	closes := calculator.FromFloats(s.Closes())
	for _, w := range e.params.Windows {
		mustAdd(ft, SMAColumn(w), calculator.RollingMean(closes, w))
	}
	return ft
}

// EMA computes ema_{w} for each configured window.
func (e *Engine) EMA(s model.PriceSeries) *model.FeatureTable {
	ft := model.NewFeatureTable(s.Ticker, s.Dates())
	closes := calculator.FromFloats(s.Closes())
	for _, w := range e.params.Windows {
		mustAdd(ft, EMAColumn(w), calculator.EMA(closes, w))
	}
	return ft
}

// RSI computes rsi_{P}.
func (e *Engine) RSI(s model.PriceSeries) *model.FeatureTable {
	ft := model.NewFeatureTable(s.Ticker, s.Dates())
	closes := calculator.FromFloats(s.Closes())
	mustAdd(ft, RSIColumn(e.params.RSIPeriod), calculator.RSI(closes, e.params.RSIPeriod))
	return ft
}

// MACD computes macd, macd_signal and macd_hist with the 12/26/9 periods.
func (e *Engine) MACD(s model.PriceSeries) *model.FeatureTable {
	ft := model.NewFeatureTable(s.Ticker, s.Dates())
	line, sig, hist := calculator.MACD(calculator.FromFloats(s.Closes()), MACDFast, MACDSlow, MACDSignal)
	mustAdd(ft, ColMACD, line)
	mustAdd(ft, ColMACDSignal, sig)
	mustAdd(ft, ColMACDHist, hist)
	return ft
}

// Volatility computes volatility_{w}d, the rolling sample standard deviation
// of one-step returns. The first w rows are undefined.
func (e *Engine) Volatility(s model.PriceSeries) *model.FeatureTable {
	ft := model.NewFeatureTable(s.Ticker, s.Dates())
	returns := calculator.PctChange(calculator.FromFloats(s.Closes()), 1)
	for _, w := range e.params.Windows {
		mustAdd(ft, VolatilityColumn(w), calculator.RollingStd(returns, w))
	}
	return ft
}

// Volume computes volume_sma_{w} and volume_ratio_{w}.
func (e *Engine) Volume(s model.PriceSeries) *model.FeatureTable {
	ft := model.NewFeatureTable(s.Ticker, s.Dates())
	volume := calculator.FromInts(s.Volumes())
	for _, w := range e.params.Windows {
		avg := calculator.RollingMean(volume, w)
		mustAdd(ft, VolumeSMAColumn(w), avg)
		mustAdd(ft, VolumeRatioColumn(w), calculator.DivSeries(volume, avg))
	}
	return ft
}

// ComputeAll runs the full catalogue and concatenates the results column-wise.
func (e *Engine) ComputeAll(s model.PriceSeries) (*model.FeatureTable, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := model.NewFeatureTable(s.Ticker, s.Dates())
	parts := []*model.FeatureTable{
		e.Returns(s),
		e.SMA(s),
		e.EMA(s),
		e.RSI(s),
		e.MACD(s),
		e.Volatility(s),
		e.Volume(s),
	}
	for _, p := range parts {
		if err := out.Merge(p); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Ticker, err)
		}
	}
	return out, nil
}

// ComputeDataset computes every ticker of ds on up to workers goroutines.
// A ticker whose series is invalid is logged and left out; it does not
// affect the others.
func (e *Engine) ComputeDataset(ctx context.Context, ds model.PriceDataset, workers int) (map[string]*model.FeatureTable, error) {
	if workers <= 0 {
		workers = 1
	}
	var (
		mu  sync.Mutex
		out = make(map[string]*model.FeatureTable, len(ds))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, ticker := range ds.Tickers() {
		series := ds[ticker]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ft, err := e.ComputeAll(series)
			if err != nil {
				e.logger.Warn().Err(err).Str("ticker", series.Ticker).Msg("skipping features")
				return nil
			}
			mu.Lock()
			out[series.Ticker] = ft
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// mustAdd panics on a column collision inside a single operation, which can
// only happen if Params.Validate was bypassed.
func mustAdd(ft *model.FeatureTable, name string, values []null.Float) {
	if err := ft.Add(name, values); err != nil {
		panic(err)
	}
}
