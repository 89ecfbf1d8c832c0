package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantamental/internal/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRecorder_FetchRuns(t *testing.T) {
	r := openTestRecorder(t)

	_, err := r.LastFetchRun()
	assert.ErrorIs(t, err, ErrNoRuns)

	start := time.Date(2024, 6, 3, 22, 30, 0, 0, time.UTC)
	require.NoError(t, r.RecordFetchRun(&FetchRun{
		StartedAt: start, FinishedAt: start.Add(time.Minute),
		Requested: 3, Succeeded: 3, Rows: 300, Status: StatusOK,
	}))
	require.NoError(t, r.RecordFetchRun(&FetchRun{
		StartedAt: start.Add(24 * time.Hour), FinishedAt: start.Add(25 * time.Hour),
		Requested: 3, Succeeded: 1, FailedTickers: []string{"BAD", "WORSE"},
		Rows: 100, Status: StatusPartial,
	}))

	last, err := r.LastFetchRun()
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, last.Status)
	assert.Equal(t, 1, last.Succeeded)
	assert.Equal(t, []string{"BAD", "WORSE"}, last.FailedTickers)
	assert.Equal(t, start.Add(24*time.Hour).Unix(), last.StartedAt.Unix())
}

func TestSQLiteRecorder_FeaturesStoreNull(t *testing.T) {
	r := openTestRecorder(t)

	dates := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	ft := model.NewFeatureTable("AAPL", dates)
	require.NoError(t, ft.Add("return_1d", []null.Float{{}, null.FloatFrom(0.1)}))

	require.NoError(t, r.RecordFeatures(ft))
	// Recording again replaces rather than duplicates.
	require.NoError(t, r.RecordFeatures(ft))

	var count int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM features WHERE ticker = 'AAPL'`).Scan(&count))
	assert.Equal(t, 2, count)

	var first, second null.Float
	require.NoError(t, r.db.QueryRow(`SELECT value FROM features WHERE date = '2024-01-02'`).Scan(&first))
	require.NoError(t, r.db.QueryRow(`SELECT value FROM features WHERE date = '2024-01-03'`).Scan(&second))
	assert.False(t, first.Valid)
	assert.True(t, second.Valid)
	assert.InDelta(t, 0.1, second.Float64, 1e-12)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordFetchRun(&FetchRun{}))
	assert.NoError(t, r.RecordFeatures(model.NewFeatureTable("X", nil)))
	_, err := r.LastFetchRun()
	assert.ErrorIs(t, err, ErrNoRuns)
	assert.NoError(t, r.Close())
}
