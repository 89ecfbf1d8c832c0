package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"quantamental/internal/collector"
	"quantamental/internal/config"
	"quantamental/internal/features"
	"quantamental/internal/logger"
	"quantamental/internal/notifier"
	"quantamental/internal/observability"
	"quantamental/internal/pipeline"
	"quantamental/internal/platform/httpclient"
	"quantamental/internal/recorder"
	"quantamental/internal/scheduler"
	"quantamental/internal/storage"
)

func main() {
	cfgPath := flag.String("config", envOr("CONFIG_PATH", "configs/default.yaml"), "path to YAML config")
	mode := flag.String("mode", "fetch", "fetch | features | serve")
	tickers := flag.String("tickers", "", "comma-separated tickers (features mode; default all stored)")
	out := flag.String("out", "-", "CSV output path for features mode ('-' for stdout)")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mode, splitTickers(*tickers), *out); err != nil {
		log.Error().Err(err).Str("mode", *mode).Msg("quantamental failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, mode string, tickers []string, out string) error {
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	rec := openRecorder(cfg)
	defer rec.Close()

	runner, err := buildRunner(cfg, rec, metrics)
	if err != nil {
		return err
	}

	switch mode {
	case "fetch":
		rep, err := runner.Refresh(ctx)
		if rep != nil {
			fmt.Println(rep.String())
		}
		return err
	case "features":
		tables, err := runner.Features(ctx, tickers)
		if err != nil {
			return err
		}
		w, closeFn, err := openOutput(out)
		if err != nil {
			return err
		}
		defer closeFn()
		return writeFeaturesCSV(w, tables)
	case "serve":
		return serve(ctx, cfg, runner, metrics)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func buildRunner(cfg *config.Config, rec recorder.Recorder, metrics *observability.Metrics) (*pipeline.Runner, error) {
	fetcher := newFetcher(cfg)
	log.Info().Str("source", fetcher.Name()).Int("tickers", len(cfg.Data.Tickers)).Msg("data source ready")

	col := collector.NewCollector(fetcher, collector.Options{
		Universe: cfg.Data.Tickers,
		Start:    cfg.Data.StartDate.Time,
		End:      cfg.Data.EndDate.Time,
		Workers:  cfg.Source.Workers,
		Metrics:  metrics,
	})
	store, err := storage.NewStore(cfg.Data.RawPath)
	if err != nil {
		return nil, err
	}
	engine, err := features.NewEngine(cfg.FeatureParams())
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(col, store, engine, rec, metrics,
		cfg.Data.DatasetFile, cfg.Features.Workers, cfg.Features.Record), nil
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	client := httpclient.New(httpclient.Options{
		Timeout:         cfg.Source.Timeout,
		RequestsPerSec:  cfg.Source.RequestsPerSec,
		MaxRetryTimeout: cfg.Source.MaxRetryTime,
		Proxy:           cfg.Source.Proxy,
	})
	switch cfg.Source.Provider {
	case "rest":
		return collector.NewRESTFetcher(cfg.Source.BaseURL, cfg.Source.APIKey, client)
	case "mock":
		return &collector.MockFetcher{Price: 100}
	default:
		f := collector.NewYahooFetcher(client)
		if cfg.Source.BaseURL != "" {
			f.BaseURL = cfg.Source.BaseURL
		}
		return f
	}
}

func openRecorder(cfg *config.Config) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		return recorder.NewNoopRecorder()
	}
	return sr
}

func serve(ctx context.Context, cfg *config.Config, runner *pipeline.Runner, metrics *observability.Metrics) error {
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Source.Proxy)

	sched := scheduler.NewScheduler(ctx, runner, tn)
	if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if tn.Enabled() {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	} else {
		log.Info().Msg("telegram disabled, no bot token configured")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, refreshing now")
		go func() { _, _ = sched.RunNow() }()
	}

	log.Info().Str("cron", cfg.Schedule.RefreshCron).Msg("quantamental is running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
	return nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func splitTickers(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
