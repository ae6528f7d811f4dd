// Command driftwatch compares a baseline dataset against current production
// data and reports feature drift and model performance degradation. It runs
// either as a one-shot check suitable for CI pipelines or as a long-lived
// monitor with an HTTP API, Prometheus metrics, and a websocket alert feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"driftwatch/internal/cfg"
	"driftwatch/internal/dataset"
	"driftwatch/internal/drift"
	"driftwatch/internal/metrics"
	"driftwatch/internal/notify"
	"driftwatch/internal/report"
	"driftwatch/internal/server"
	"driftwatch/internal/storage"
)

func main() {
	var (
		baselinePath        = flag.String("baseline", "", "baseline dataset CSV (overrides config)")
		currentPath         = flag.String("current", "", "current dataset CSV (overrides config)")
		baselineMetricsPath = flag.String("baseline-metrics", "", "baseline model metrics JSON")
		currentMetricsPath  = flag.String("current-metrics", "", "current model metrics JSON")
		outputDir           = flag.String("output", "", "report output directory (overrides config)")
		figuresDir          = flag.String("figures", "", "figures output directory, empty disables figures")
		serve               = flag.Bool("serve", false, "run as a continuous monitor")
		listenAddr          = flag.String("listen", "", "monitor listen address (overrides config)")
		interval            = flag.Duration("interval", 0, "monitor detection interval (overrides config)")
		failOnCritical      = flag.Bool("fail-on-critical", false, "exit non-zero when critical alerts are found")
		logLevel            = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	setupLogging(*logLevel)

	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	applyFlagOverrides(&settings, *baselinePath, *currentPath, *baselineMetricsPath,
		*currentMetricsPath, *outputDir, *figuresDir, *listenAddr, *interval)

	m := metrics.New()

	var store *storage.Store
	if settings.DataPath != "" {
		store, err = storage.New(settings.DataPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", settings.DataPath).Msg("failed to open history store")
		}
		defer store.Close()
	}

	var webhook *notify.Webhook
	if settings.WebhookURL != "" {
		webhook = notify.NewWebhook(settings.WebhookURL, settings.WebhookTimeout)
	}

	runner := func(ctx context.Context) (*drift.Report, error) {
		return runDetection(ctx, settings, m, store, webhook)
	}

	if *serve {
		runMonitor(runner, settings)
		return
	}

	rep, err := runner(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("drift detection failed")
	}

	report.PrintSummary(rep)

	if *failOnCritical && rep.Summary.CriticalAlerts > 0 {
		log.Error().Int("critical_alerts", rep.Summary.CriticalAlerts).Msg("critical drift detected")
		os.Exit(2)
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// applyFlagOverrides lets command line flags win over file and env config.
func applyFlagOverrides(s *cfg.Settings, baseline, current, baseMetrics, curMetrics,
	output, figures, listen string, interval time.Duration) {
	if baseline != "" {
		s.BaselinePath = baseline
	}
	if current != "" {
		s.CurrentPath = current
	}
	if baseMetrics != "" {
		s.BaselineMetricsPath = baseMetrics
	}
	if curMetrics != "" {
		s.CurrentMetricsPath = curMetrics
	}
	if output != "" {
		s.ReportDir = output
	}
	if figures != "" {
		s.FiguresDir = figures
	}
	if listen != "" {
		s.ListenAddr = listen
	}
	if interval > 0 {
		s.MonitorInterval = interval
	}
}

// runDetection performs one full detection pass: load, detect, emit,
// persist, notify, observe.
func runDetection(ctx context.Context, settings cfg.Settings, m *metrics.Metrics,
	store *storage.Store, webhook *notify.Webhook) (*drift.Report, error) {
	started := time.Now()

	baseline, err := dataset.LoadCSV(settings.BaselinePath)
	if err != nil {
		m.DetectionFailures.Inc()
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	current, err := dataset.LoadCSV(settings.CurrentPath)
	if err != nil {
		m.DetectionFailures.Inc()
		return nil, fmt.Errorf("load current: %w", err)
	}

	baselineMetrics, err := loadOptionalMetrics(settings.BaselineMetricsPath)
	if err != nil {
		m.DetectionFailures.Inc()
		return nil, err
	}
	currentMetrics, err := loadOptionalMetrics(settings.CurrentMetricsPath)
	if err != nil {
		m.DetectionFailures.Inc()
		return nil, err
	}

	detector := drift.NewDetector(settings.Thresholds)
	rep, err := detector.DetectDrift(baseline, current, baselineMetrics, currentMetrics)
	if err != nil {
		m.DetectionFailures.Inc()
		return nil, fmt.Errorf("detect drift: %w", err)
	}

	emitter := report.NewEmitter(settings.ReportDir)
	if err := emitter.Write(rep); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	if settings.FiguresDir != "" {
		if err := report.RenderFigures(rep, baseline, current, settings.FiguresDir); err != nil {
			log.Warn().Err(err).Msg("failed to render drift figures")
		}
	}

	if store != nil {
		if err := store.SaveReport(rep); err != nil {
			log.Warn().Err(err).Msg("failed to persist report history")
		}
	}
	if webhook != nil {
		if err := webhook.SendAlerts(ctx, rep); err != nil {
			m.WebhookFailures.Inc()
		}
	}

	m.ObserveReport(rep, time.Since(started))
	return rep, nil
}

func loadOptionalMetrics(path string) (map[string]float64, error) {
	if path == "" {
		return nil, nil
	}
	metrics, err := dataset.LoadMetrics(path)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	return metrics, nil
}

func runMonitor(runner server.Runner, settings cfg.Settings) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(runner, settings.MonitorInterval, nil)

	log.Info().
		Str("listen", settings.ListenAddr).
		Dur("interval", settings.MonitorInterval).
		Msg("starting drift monitor")

	if err := srv.Run(ctx, settings.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("monitor server failed")
	}
	log.Info().Msg("monitor stopped")
}
