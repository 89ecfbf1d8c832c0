package recorder

import "quantamental/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordFetchRun(_ *FetchRun) error           { return nil }
func (n *NoopRecorder) RecordFeatures(_ *model.FeatureTable) error { return nil }
func (n *NoopRecorder) LastFetchRun() (*FetchRun, error)           { return nil, ErrNoRuns }
func (n *NoopRecorder) Close() error                               { return nil }
