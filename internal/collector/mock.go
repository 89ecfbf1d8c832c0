package collector

import (
	"context"
	"math"
	"time"

	"quantamental/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Tickers present in Data return those bars; tickers in Errors fail with that
// error; anything else gets deterministic synthetic weekday bars.
type MockFetcher struct {
	Price  float64
	Data   map[string][]model.PriceBar
	Errors map[string]error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]model.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errors[ticker]; ok {
		return nil, err
	}
	if bars, ok := m.Data[ticker]; ok {
		return append([]model.PriceBar(nil), bars...), nil
	}
	base := m.Price
	if base <= 0 {
		base = 100
	}
	return generateMockBars(base, start, end), nil
}

func generateMockBars(basePrice float64, start, end time.Time) []model.PriceBar {
	var bars []model.PriceBar
	i := 0
	for d := model.NormalizeDate(start); d.Before(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		p := basePrice * (1 + 0.05*math.Sin(float64(i)/10) + float64(i)*0.0005)
		bars = append(bars, model.PriceBar{
			Date:   d,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000 + int64(i%10)*10000,
		})
		i++
	}
	return bars
}
