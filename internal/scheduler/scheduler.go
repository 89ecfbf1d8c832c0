package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quantamental/internal/model"
	"quantamental/internal/notifier"
	"quantamental/internal/pipeline"
	"quantamental/internal/recorder"
)

// ErrBusy is returned by RunNow while another refresh is in progress.
var ErrBusy = errors.New("refresh already running")

// Runner is the subset of pipeline.Runner the scheduler drives.
type Runner interface {
	Refresh(ctx context.Context) (*pipeline.Report, error)
	Features(ctx context.Context, tickers []string) (map[string]*model.FeatureTable, error)
	Series(ticker string) (model.PriceSeries, error)
	LastRun() (*recorder.FetchRun, error)
}

// Sender delivers messages to operators.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages the cron refresh and operator commands.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Notifier Sender
	Ctx      context.Context

	running atomic.Bool
	logger  zerolog.Logger
}

// NewScheduler creates a new Scheduler. notifier may be nil.
func NewScheduler(ctx context.Context, runner Runner, notifier Sender) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Notifier: notifier,
		Ctx:      ctx,
		logger:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds the refresh job on refreshCron (6-field, with seconds).
func (s *Scheduler) Register(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunNow executes a refresh immediately unless one is already running.
func (s *Scheduler) RunNow() (*pipeline.Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.running.Store(false)

	s.logger.Info().Msg("running refresh")
	return s.Runner.Refresh(s.Ctx)
}

func (s *Scheduler) refreshTask() {
	rep, err := s.RunNow()
	if errors.Is(err, ErrBusy) {
		s.logger.Warn().Msg("skipping refresh, previous run still in progress")
		return
	}
	if rep != nil {
		s.trySend(notifier.FormatRefreshReport(rep))
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.HelpText()
	}

	switch strings.ToLower(fields[0]) {
	case "/refresh":
		if s.running.Load() {
			return "Refresh already running"
		}
		s.refreshTask()
		return ""
	case "/status":
		run, err := s.Runner.LastRun()
		if errors.Is(err, recorder.ErrNoRuns) {
			return "No refresh recorded yet"
		}
		if err != nil {
			return fmt.Sprintf("Status unavailable: %v", err)
		}
		return notifier.FormatStatus(run)
	case "/features":
		if len(fields) != 2 {
			return "Usage: /features TICKER"
		}
		return s.featureSnapshot(strings.ToUpper(fields[1]))
	default:
		return notifier.HelpText()
	}
}

func (s *Scheduler) featureSnapshot(ticker string) string {
	tables, err := s.Runner.Features(s.Ctx, []string{ticker})
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("features command failed")
		return fmt.Sprintf("Features for %s unavailable: %v", ticker, err)
	}
	ft, ok := tables[ticker]
	if !ok {
		return fmt.Sprintf("Features for %s unavailable: invalid price history", ticker)
	}
	series, err := s.Runner.Series(ticker)
	if err != nil {
		return fmt.Sprintf("Prices for %s unavailable: %v", ticker, err)
	}
	return notifier.FormatFeatureSnapshot(series, ft)
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error().Err(err).Msg("send notification")
	}
}
