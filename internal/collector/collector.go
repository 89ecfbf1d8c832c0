package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"quantamental/internal/model"
	"quantamental/internal/observability"
)

// Options configures a Collector.
type Options struct {
	Universe []string
	Start    time.Time
	End      time.Time // exclusive
	Workers  int
	Metrics  *observability.Metrics
}

// Collector fetches price history for a ticker universe over a fixed range.
type Collector struct {
	fetcher  Fetcher
	universe []string
	start    time.Time
	end      time.Time
	workers  int
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// BatchResult is the outcome of a batch fetch. Failed tickers are excluded
// from Dataset.
type BatchResult struct {
	Dataset   model.PriceDataset
	Requested int
	Succeeded []string
	Failed    map[string]error
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, opts Options) *Collector {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Collector{
		fetcher:  fetcher,
		universe: append([]string(nil), opts.Universe...),
		start:    model.NormalizeDate(opts.Start),
		end:      model.NormalizeDate(opts.End),
		workers:  workers,
		metrics:  opts.Metrics,
		logger:   log.With().Str("component", "collector").Str("source", fetcher.Name()).Logger(),
	}
}

// Universe returns the configured tickers.
func (c *Collector) Universe() []string {
	return append([]string(nil), c.universe...)
}

// FetchSingle fetches one ticker's history, sorted by date with duplicate
// dates dropped. A source that returns no rows yields ErrNoData.
func (c *Collector) FetchSingle(ctx context.Context, ticker string) (model.PriceSeries, error) {
	began := time.Now()
	bars, err := c.fetcher.FetchDailyBars(ctx, ticker, c.start, c.end)
	if err == nil && len(bars) == 0 {
		err = ErrNoData
	}
	c.metrics.RecordFetch(err, time.Since(began))
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	return model.PriceSeries{Ticker: ticker, Bars: cleanBars(bars)}, nil
}

// FetchBatch fetches every ticker on a bounded worker pool. A ticker's
// failure is logged and reported in Failed; it never cancels the others.
// An empty list fetches the configured universe.
func (c *Collector) FetchBatch(ctx context.Context, tickers []string) BatchResult {
	if len(tickers) == 0 {
		tickers = c.universe
	}
	tickers = uniqueTickers(tickers)

	res := BatchResult{
		Dataset:   make(model.PriceDataset, len(tickers)),
		Requested: len(tickers),
		Failed:    make(map[string]error),
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, ticker := range tickers {
		g.Go(func() error {
			series, err := c.FetchSingle(ctx, ticker)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn().Err(err).Str("ticker", ticker).Msg("fetch failed")
				res.Failed[ticker] = err
				return nil
			}
			c.logger.Debug().Str("ticker", ticker).Int("bars", series.Len()).Msg("fetched")
			res.Dataset[ticker] = series
			return nil
		})
	}
	_ = g.Wait()

	res.Succeeded = res.Dataset.Tickers()
	c.logger.Info().
		Int("requested", res.Requested).
		Int("succeeded", len(res.Succeeded)).
		Int("failed", len(res.Failed)).
		Msg("batch fetch complete")
	return res
}

func cleanBars(bars []model.PriceBar) []model.PriceBar {
	out := make([]model.PriceBar, len(bars))
	for i, b := range bars {
		b.Date = model.NormalizeDate(b.Date)
		out[i] = b
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	dedup := out[:0]
	for i, b := range out {
		if i > 0 && b.Date.Equal(dedup[len(dedup)-1].Date) {
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}

func uniqueTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
