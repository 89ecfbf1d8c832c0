package recorder

import (
	"errors"
	"time"

	"quantamental/internal/model"
)

// ErrNoRuns is returned by LastFetchRun before any run has been recorded.
var ErrNoRuns = errors.New("no fetch runs recorded")

// Run status values.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// FetchRun records one refresh of the price dataset.
type FetchRun struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	Requested     int
	Succeeded     int
	FailedTickers []string
	Rows          int
	Status        string
	Note          string
}

// Recorder persists run history and computed features for analysis.
type Recorder interface {
	RecordFetchRun(run *FetchRun) error
	RecordFeatures(ft *model.FeatureTable) error
	LastFetchRun() (*FetchRun, error)
	Close() error
}
