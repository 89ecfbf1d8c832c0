package collector

import (
	"context"
	"errors"
	"time"

	"quantamental/internal/model"
)

// ErrNoData is returned when a source has no bars for the requested range.
var ErrNoData = errors.New("no data returned")

// Fetcher defines the interface for fetching daily price bars.
// start is inclusive, end is exclusive.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]model.PriceBar, error)
	Name() string
}
