package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantamental/internal/model"
	"quantamental/internal/pipeline"
	"quantamental/internal/recorder"
	"quantamental/internal/storage"
)

type fakeRunner struct {
	refreshes int
	block     chan struct{}
	lastRun   *recorder.FetchRun
}

func (f *fakeRunner) Refresh(_ context.Context) (*pipeline.Report, error) {
	if f.block != nil {
		<-f.block
	}
	f.refreshes++
	return &pipeline.Report{Requested: 1, Succeeded: []string{"AAPL"}, Rows: 3}, nil
}

func (f *fakeRunner) Features(_ context.Context, tickers []string) (map[string]*model.FeatureTable, error) {
	if tickers[0] != "AAPL" {
		return nil, fmt.Errorf("%s: %w", tickers[0], storage.ErrUnknownTicker)
	}
	ft := model.NewFeatureTable("AAPL", []time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)})
	if err := ft.Add("rsi_14", []null.Float{null.FloatFrom(55)}); err != nil {
		return nil, err
	}
	return map[string]*model.FeatureTable{"AAPL": ft}, nil
}

func (f *fakeRunner) Series(ticker string) (model.PriceSeries, error) {
	return model.PriceSeries{Ticker: ticker, Bars: []model.PriceBar{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), High: 101, Low: 99, Close: 100},
	}}, nil
}

func (f *fakeRunner) LastRun() (*recorder.FetchRun, error) {
	if f.lastRun == nil {
		return nil, recorder.ErrNoRuns
	}
	return f.lastRun, nil
}

type captureSender struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureSender) SendWithRetry(_ context.Context, text string, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	return nil
}

func TestHandleCommand_Refresh(t *testing.T) {
	runner := &fakeRunner{}
	sender := &captureSender{}
	s := NewScheduler(context.Background(), runner, sender)

	assert.Equal(t, "", s.HandleCommand("/refresh"))
	assert.Equal(t, 1, runner.refreshes)
	require.Len(t, sender.msgs, 1)
	assert.Contains(t, sender.msgs[0], "Tickers: 1/1")
}

func TestHandleCommand_Status(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(context.Background(), runner, nil)
	assert.Equal(t, "No refresh recorded yet", s.HandleCommand("/status"))

	runner.lastRun = &recorder.FetchRun{Status: recorder.StatusOK, Requested: 2, Succeeded: 2}
	assert.Contains(t, s.HandleCommand("/status"), "Tickers: 2/2")
}

func TestHandleCommand_Features(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{}, nil)

	reply := s.HandleCommand("/features aapl")
	assert.Contains(t, reply, "<b>AAPL</b>")
	assert.Contains(t, reply, "rsi_14: 55.0000")

	assert.Contains(t, s.HandleCommand("/features TSLA"), "ticker not in dataset")
	assert.Equal(t, "Usage: /features TICKER", s.HandleCommand("/features"))
}

func TestHandleCommand_Help(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{}, nil)
	assert.Contains(t, s.HandleCommand("hello"), "/refresh")
	assert.Contains(t, s.HandleCommand(""), "/features")
}

func TestRunNow_RejectsOverlap(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := NewScheduler(context.Background(), runner, nil)

	done := make(chan struct{})
	go func() {
		_, _ = s.RunNow()
		close(done)
	}()
	require.Eventually(t, s.running.Load, time.Second, time.Millisecond)

	_, err := s.RunNow()
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, "Refresh already running", s.HandleCommand("/refresh"))

	close(runner.block)
	<-done
	assert.Equal(t, 1, runner.refreshes)
}

func TestRegister_RejectsBadCron(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{}, nil)
	assert.Error(t, s.Register("not a cron"))
	assert.NoError(t, s.Register("0 30 22 * * 1-5"))
}
