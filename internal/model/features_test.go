package model

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDates(n int) []time.Time {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

func TestFeatureTable_AddAndMerge(t *testing.T) {
	ft := NewFeatureTable("AAPL", testDates(2))
	require.NoError(t, ft.Add("a", []null.Float{null.FloatFrom(1), {}}))

	other := NewFeatureTable("AAPL", testDates(2))
	require.NoError(t, other.Add("b", []null.Float{null.FloatFrom(2), null.FloatFrom(3)}))
	require.NoError(t, ft.Merge(other))

	assert.Equal(t, []string{"a", "b"}, ft.Names())
	row := ft.Row(1)
	assert.False(t, row["a"].Valid)
	assert.Equal(t, 3.0, row["b"].Float64)
}

func TestFeatureTable_RejectsCollision(t *testing.T) {
	ft := NewFeatureTable("AAPL", testDates(1))
	require.NoError(t, ft.Add("sma_5", []null.Float{{}}))
	err := ft.Add("sma_5", []null.Float{{}})
	assert.ErrorIs(t, err, ErrColumnExists)
}

func TestFeatureTable_RejectsMisaligned(t *testing.T) {
	ft := NewFeatureTable("AAPL", testDates(3))
	err := ft.Add("x", []null.Float{{}})
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestPriceSeries_Validate(t *testing.T) {
	dates := testDates(3)
	s := PriceSeries{Ticker: "MSFT", Bars: []PriceBar{
		{Date: dates[0]}, {Date: dates[2]}, {Date: dates[1]},
	}}
	assert.ErrorIs(t, s.Validate(), ErrUnordered)

	s.Bars[1], s.Bars[2] = s.Bars[2], s.Bars[1]
	assert.NoError(t, s.Validate())
}

func TestPriceDataset_TickersSorted(t *testing.T) {
	ds := PriceDataset{
		"MSFT": {Ticker: "MSFT", Bars: make([]PriceBar, 2)},
		"AAPL": {Ticker: "AAPL", Bars: make([]PriceBar, 3)},
	}
	assert.Equal(t, []string{"AAPL", "MSFT"}, ds.Tickers())
	assert.Equal(t, 5, ds.Rows())
}
