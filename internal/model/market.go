package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnordered is returned when a series has non-increasing dates.
var ErrUnordered = errors.New("dates not strictly increasing")

// DateLayout is the calendar date format used in config, files and logs.
const DateLayout = "2006-01-02"

// PriceBar is one trading day for one ticker.
type PriceBar struct {
	Date   time.Time // UTC midnight
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// PriceSeries holds the daily bars of a single ticker, oldest first.
type PriceSeries struct {
	Ticker string
	Bars   []PriceBar
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Closes extracts the close column.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Volumes extracts the volume column.
func (s PriceSeries) Volumes() []int64 {
	vols := make([]int64, len(s.Bars))
	for i, b := range s.Bars {
		vols[i] = b.Volume
	}
	return vols
}

// Dates extracts the date index.
func (s PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		dates[i] = b.Date
	}
	return dates
}

// Validate checks that dates are strictly increasing.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("%s: row %d (%s): %w", s.Ticker, i,
				s.Bars[i].Date.Format(DateLayout), ErrUnordered)
		}
	}
	return nil
}

// PriceDataset maps ticker to its price series.
type PriceDataset map[string]PriceSeries

// Tickers returns the dataset's tickers in sorted order.
func (d PriceDataset) Tickers() []string {
	tickers := make([]string, 0, len(d))
	for t := range d {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// Rows returns the total number of (ticker, date) rows.
func (d PriceDataset) Rows() int {
	n := 0
	for _, s := range d {
		n += len(s.Bars)
	}
	return n
}

// NormalizeDate truncates t to a UTC calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
