// Package storage persists price datasets as a single long-format Parquet file.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quantamental/internal/model"
)

var (
	// ErrSchema is returned when a stored file lacks a required column.
	ErrSchema = errors.New("dataset schema mismatch")
	// ErrUnknownTicker is returned by LoadTicker for a ticker not in the file.
	ErrUnknownTicker = errors.New("ticker not in dataset")
)

// requiredColumns must all be present for a file to load.
var requiredColumns = []string{"date", "open", "high", "low", "close", "volume", "ticker"}

// priceRow is one (ticker, date) row on disk. date is days since the Unix epoch.
type priceRow struct {
	Date   int32   `parquet:"date,date"`
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume int64   `parquet:"volume"`
	Ticker string  `parquet:"ticker,dict"`
}

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func toEpochDays(t time.Time) int32 {
	return int32(model.NormalizeDate(t).Sub(epoch).Hours() / 24)
}

func fromEpochDays(d int32) time.Time {
	return epoch.AddDate(0, 0, int(d))
}

// Store reads and writes dataset files under a root directory.
type Store struct {
	root   string
	logger zerolog.Logger
}

// NewStore creates root if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		root:   root,
		logger: log.With().Str("component", "storage").Logger(),
	}, nil
}

// Path returns the full path of filename under the store root.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.root, filename)
}

// Save writes ds to filename, replacing any existing file. Rows are ordered
// by ticker then date.
func (s *Store) Save(ds model.PriceDataset, filename string) (string, error) {
	rows := make([]priceRow, 0, ds.Rows())
	for _, ticker := range ds.Tickers() {
		for _, b := range ds[ticker].Bars {
			rows = append(rows, priceRow{
				Date:   toEpochDays(b.Date),
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
				Ticker: ticker,
			})
		}
	}

	target := s.Path(filename)
	tmp, err := os.CreateTemp(s.root, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := parquet.WriteFile(tmpPath, rows); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("replace dataset: %w", err)
	}

	s.logger.Info().Str("path", target).Int("tickers", len(ds)).Int("rows", len(rows)).Msg("dataset saved")
	return target, nil
}

// Load reads filename back into a dataset grouped by ticker, each series
// sorted by date.
func (s *Store) Load(filename string) (model.PriceDataset, error) {
	path := s.Path(filename)
	if err := checkSchema(path); err != nil {
		return nil, err
	}

	rows, err := parquet.ReadFile[priceRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}

	ds := make(model.PriceDataset)
	for _, r := range rows {
		series := ds[r.Ticker]
		series.Ticker = r.Ticker
		series.Bars = append(series.Bars, model.PriceBar{
			Date:   fromEpochDays(r.Date),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
		ds[r.Ticker] = series
	}
	for ticker, series := range ds {
		sort.SliceStable(series.Bars, func(i, j int) bool { return series.Bars[i].Date.Before(series.Bars[j].Date) })
		if err := series.Validate(); err != nil {
			return nil, fmt.Errorf("load %s: duplicate rows for %s: %w", path, ticker, err)
		}
	}

	s.logger.Debug().Str("path", path).Int("tickers", len(ds)).Int("rows", len(rows)).Msg("dataset loaded")
	return ds, nil
}

// LoadTicker loads filename and returns one ticker's series.
func (s *Store) LoadTicker(filename, ticker string) (model.PriceSeries, error) {
	ds, err := s.Load(filename)
	if err != nil {
		return model.PriceSeries{}, err
	}
	series, ok := ds[ticker]
	if !ok {
		return model.PriceSeries{}, fmt.Errorf("%s: %w", ticker, ErrUnknownTicker)
	}
	return series, nil
}

func checkSchema(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat dataset: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return fmt.Errorf("open parquet %s: %w", path, err)
	}
	schema := pf.Schema()
	for _, col := range requiredColumns {
		if _, ok := schema.Lookup(col); !ok {
			return fmt.Errorf("%s: missing column %q: %w", path, col, ErrSchema)
		}
	}
	return nil
}
