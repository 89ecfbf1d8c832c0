// Package pipeline wires acquisition, storage, the feature engine and the
// recorder into the refresh and feature workflows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quantamental/internal/collector"
	"quantamental/internal/features"
	"quantamental/internal/model"
	"quantamental/internal/observability"
	"quantamental/internal/recorder"
	"quantamental/internal/storage"
)

// ErrNothingFetched is returned by Refresh when every ticker failed.
var ErrNothingFetched = errors.New("no ticker fetched successfully")

// Runner executes the refresh and feature workflows. It holds no state of its
// own beyond its collaborators.
type Runner struct {
	Collector   *collector.Collector
	Store       *storage.Store
	Engine      *features.Engine
	Recorder    recorder.Recorder
	Metrics     *observability.Metrics
	DatasetFile string
	Workers     int
	Record      bool

	logger zerolog.Logger
}

// NewRunner creates a Runner. A nil rec records nothing.
func NewRunner(c *collector.Collector, s *storage.Store, e *features.Engine, rec recorder.Recorder, m *observability.Metrics, datasetFile string, workers int, record bool) *Runner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Runner{
		Collector:   c,
		Store:       s,
		Engine:      e,
		Recorder:    rec,
		Metrics:     m,
		DatasetFile: datasetFile,
		Workers:     workers,
		Record:      record,
		logger:      log.With().Str("component", "pipeline").Logger(),
	}
}

// Refresh fetches the configured universe, overwrites the stored dataset and
// computes features for every fetched ticker.
func (r *Runner) Refresh(ctx context.Context) (*Report, error) {
	rep := &Report{StartedAt: time.Now()}
	err := r.refresh(ctx, rep)
	rep.FinishedAt = time.Now()
	rep.Err = err

	r.Metrics.RecordRefresh(err)
	if recErr := r.Recorder.RecordFetchRun(rep.FetchRun()); recErr != nil {
		r.logger.Warn().Err(recErr).Msg("record fetch run failed")
	}

	if err != nil {
		r.logger.Error().Err(err).Msg("refresh failed")
		return rep, err
	}
	r.logger.Info().
		Int("tickers", len(rep.Succeeded)).
		Int("failed", len(rep.Failed)).
		Int("rows", rep.Rows).
		Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("refresh complete")
	return rep, nil
}

func (r *Runner) refresh(ctx context.Context, rep *Report) error {
	res := r.Collector.FetchBatch(ctx, nil)
	rep.Requested = res.Requested
	rep.Succeeded = res.Succeeded
	rep.Failed = res.Failed
	if len(res.Succeeded) == 0 {
		return ErrNothingFetched
	}

	path, err := r.Store.Save(res.Dataset, r.DatasetFile)
	if err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	rep.Path = path
	rep.Rows = res.Dataset.Rows()
	r.Metrics.SetDatasetRows(rep.Rows)

	tables, err := r.Engine.ComputeDataset(ctx, res.Dataset, r.Workers)
	if err != nil {
		return fmt.Errorf("compute features: %w", err)
	}
	rep.FeatureTables = len(tables)
	r.Metrics.AddFeatures(len(tables))

	if r.Record {
		for _, ticker := range sortedKeys(tables) {
			if err := r.Recorder.RecordFeatures(tables[ticker]); err != nil {
				r.logger.Warn().Err(err).Str("ticker", ticker).Msg("record features failed")
			}
		}
	}
	return nil
}

// Features loads the stored dataset and computes feature tables for tickers,
// or for every stored ticker when tickers is empty.
func (r *Runner) Features(ctx context.Context, tickers []string) (map[string]*model.FeatureTable, error) {
	ds, err := r.Store.Load(r.DatasetFile)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if len(tickers) > 0 {
		subset := make(model.PriceDataset, len(tickers))
		for _, t := range tickers {
			series, ok := ds[t]
			if !ok {
				return nil, fmt.Errorf("%s: %w", t, storage.ErrUnknownTicker)
			}
			subset[t] = series
		}
		ds = subset
	}

	tables, err := r.Engine.ComputeDataset(ctx, ds, r.Workers)
	if err != nil {
		return nil, err
	}
	r.Metrics.AddFeatures(len(tables))
	return tables, nil
}

// Series loads one ticker's stored price history.
func (r *Runner) Series(ticker string) (model.PriceSeries, error) {
	return r.Store.LoadTicker(r.DatasetFile, ticker)
}

// LastRun returns the most recently recorded refresh.
func (r *Runner) LastRun() (*recorder.FetchRun, error) {
	return r.Recorder.LastFetchRun()
}

// Report summarises one refresh.
type Report struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	Requested     int
	Succeeded     []string
	Failed        map[string]error
	Rows          int
	Path          string
	FeatureTables int
	Err           error
}

// Status classifies the run.
func (rep *Report) Status() string {
	switch {
	case rep.Err != nil:
		return recorder.StatusFailed
	case len(rep.Failed) > 0:
		return recorder.StatusPartial
	default:
		return recorder.StatusOK
	}
}

// FailedTickers returns the failed tickers in sorted order.
func (rep *Report) FailedTickers() []string {
	return sortedKeys(rep.Failed)
}

// FetchRun converts the report into a recorder row.
func (rep *Report) FetchRun() *recorder.FetchRun {
	run := &recorder.FetchRun{
		StartedAt:     rep.StartedAt,
		FinishedAt:    rep.FinishedAt,
		Requested:     rep.Requested,
		Succeeded:     len(rep.Succeeded),
		FailedTickers: rep.FailedTickers(),
		Rows:          rep.Rows,
		Status:        rep.Status(),
	}
	if rep.Err != nil {
		run.Note = rep.Err.Error()
	}
	return run
}

// String renders a plain-text summary for logs and chat.
func (rep *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Refresh %s: %d/%d tickers, %d rows", rep.Status(), len(rep.Succeeded), rep.Requested, rep.Rows)
	if rep.FeatureTables > 0 {
		fmt.Fprintf(&b, ", features for %d", rep.FeatureTables)
	}
	if !rep.FinishedAt.IsZero() {
		fmt.Fprintf(&b, " in %s", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	}
	for _, t := range rep.FailedTickers() {
		fmt.Fprintf(&b, "\n  %s: %v", t, rep.Failed[t])
	}
	if rep.Err != nil {
		fmt.Fprintf(&b, "\nerror: %v", rep.Err)
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
