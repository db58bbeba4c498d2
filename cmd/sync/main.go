package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/courtdata/nba-sync/internal/app"
	"github.com/courtdata/nba-sync/internal/config"
	"github.com/courtdata/nba-sync/internal/observability"
	"github.com/courtdata/nba-sync/internal/platform/logging"
	"github.com/courtdata/nba-sync/internal/usecase"
)

func main() {
	once := flag.Bool("once", true, "run one sync pass and exit")
	daemon := flag.Bool("daemon", false, "run on the configured schedule until interrupted")
	force := flag.Bool("force", false, "resync games that already have ledger entries")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() {
		_ = logger.Sync()
	}()

	shutdownUptrace, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownUptrace(ctx)
	}()

	stopPyroscope, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = stopPyroscope()
	}()

	pprofSrv, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Error("start pprof", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = observability.StopPprofServer(pprofSrv, 5*time.Second)
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = application.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := usecase.PassOptions{
		Force:         *force || cfg.SyncForce,
		MaxWorkers:    cfg.SyncMaxWorkers,
		BatchSize:     cfg.SyncBatchSize,
		BatchInterval: cfg.SyncBatchInterval,
		ReverseOrder:  true,
		WithRetry:     cfg.SyncWithRetry,
		MaxRetries:    cfg.SyncMaxRetries,
	}

	if *daemon {
		runDaemon(ctx, cfg, application, opts, logger)
		return
	}
	if *once {
		report := runPass(ctx, application, opts, logger)
		if report.Status == usecase.PassStatusFailed && cfg.SyncExitNonzeroOnFailure {
			os.Exit(1)
		}
	}
}

func runPass(ctx context.Context, application *app.App, opts usecase.PassOptions, logger *logging.Logger) usecase.PassReport {
	report, err := application.Manager.SyncRemainingGameStats(ctx, opts)
	if err != nil {
		logger.ErrorContext(ctx, "sync pass failed to plan", "error", err)
		return report
	}

	logger.InfoContext(ctx, "sync pass finished",
		"status", report.Status,
		"duration_seconds", report.DurationSeconds,
		"total_games", report.TotalGames,
		"boxscore_to_sync", report.BoxscoreToSync,
		"playbyplay_to_sync", report.PlayByPlayToSync,
		"boxscore_success", report.Details.Boxscore.Batch.SuccessfulGames,
		"boxscore_failed", report.Details.Boxscore.Batch.FailedGames,
		"playbyplay_success", report.Details.PlayByPlay.Batch.SuccessfulGames,
		"playbyplay_failed", report.Details.PlayByPlay.Batch.FailedGames,
		"playbyplay_no_data", report.Details.PlayByPlay.Batch.NoDataGames,
		"segmented", report.Segmented,
	)
	return report
}

func runDaemon(ctx context.Context, cfg config.Config, application *app.App, opts usecase.PassOptions, logger *logging.Logger) {
	scheduler := gocron.NewScheduler(time.UTC)

	_, err := scheduler.Cron(cfg.SyncDaemonSchedule).Do(func() {
		runPass(ctx, application, opts, logger)
	})
	if err != nil {
		logger.Error("schedule sync pass", "error", err, "schedule", cfg.SyncDaemonSchedule)
		os.Exit(1)
	}

	logger.Info("sync daemon starting", "schedule", cfg.SyncDaemonSchedule)
	scheduler.StartAsync()

	<-ctx.Done()
	scheduler.Stop()
	logger.Info("sync daemon stopped")
}
