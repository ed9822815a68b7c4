package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/oli-a11y/albar-autos-feed/app/api"
	"github.com/oli-a11y/albar-autos-feed/app/cfg"
	"github.com/oli-a11y/albar-autos-feed/app/database"
	"github.com/oli-a11y/albar-autos-feed/app/feed"
	"github.com/oli-a11y/albar-autos-feed/app/metrics"
	"github.com/oli-a11y/albar-autos-feed/app/report"
	"github.com/oli-a11y/albar-autos-feed/app/source"
	"github.com/oli-a11y/albar-autos-feed/app/store"
	"github.com/oli-a11y/albar-autos-feed/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	newLogger(os.Stderr, appCfg.LogFormat, appCfg.LogLevel, appCfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appCfg); err != nil {
		slog.Error("Feed generator failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg *cfg.Cfg) error {
	var runs database.RunRepository
	if appCfg.DBPath != "" {
		db, err := database.NewConnection(appCfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			return err
		}
		slog.Debug("Run history ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

		runs = database.NewRunRepository(db)
	}

	if appCfg.Report {
		return printReport(ctx, runs, appCfg.ReportLimit)
	}

	settings, err := appCfg.Settings()
	if err != nil {
		return err
	}

	fetcher := source.NewFetcher(&http.Client{}, appCfg.UserAgent, appCfg.Timeout)
	src, err := source.New(source.Type(appCfg.SourceType), appCfg.Source, fetcher)
	if err != nil {
		return err
	}

	feedStore, closeStore, err := openStore(ctx, appCfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sourceType := appCfg.SourceType
	if sourceType == string(source.TypeAuto) {
		sourceType = string(source.DetectType(appCfg.Source))
	}

	pipeline := tasks.NewPipeline(src, sourceType, appCfg.Source, settings, feedStore)
	pipeline.Output = appCfg.Output
	pipeline.Runs = runs

	if !appCfg.Serve {
		summary, err := pipeline.Run(ctx, uuid.NewString(), tasks.OriginCLI)
		if err != nil {
			return err
		}
		return report.WriteSummary(os.Stdout, *summary)
	}

	pipeline.Metrics = metrics.New()
	return serve(ctx, appCfg, pipeline, feedStore, runs)
}

// openStore returns the output file store, fanned out to Redis when an
// address is configured.
func openStore(ctx context.Context, appCfg *cfg.Cfg) (store.FeedStore, func(), error) {
	fileStore := store.NewFileStore(appCfg.Output)
	if appCfg.RedisAddr == "" {
		return fileStore, func() {}, nil
	}

	redisStore, err := store.NewRedisStore(ctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB, appCfg.RedisKey)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Feed will also be stored in Redis", "addr", appCfg.RedisAddr, "key", appCfg.RedisKey)

	closeFn := func() {
		if err := redisStore.Close(); err != nil {
			slog.Warn("Failed to close Redis client", "error", err)
		}
	}

	// Redis first so replicas serve the shared copy.
	return store.NewMultiStore(redisStore, fileStore), closeFn, nil
}

func printReport(ctx context.Context, runs database.RunRepository, limit int) error {
	if runs == nil {
		return errors.New("run history is disabled")
	}

	list, err := runs.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if err := report.WriteRuns(os.Stdout, list); err != nil {
		return err
	}

	if len(list) == 0 || list[0].Rejected == 0 {
		return nil
	}

	rejections, err := runs.ListRejections(ctx, list[0].ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\nRejected in run %s:\n", list[0].ID)
	return report.WriteRejections(os.Stdout, toFeedRejections(rejections))
}

func serve(ctx context.Context, appCfg *cfg.Cfg, pipeline *tasks.Pipeline, feedStore store.FeedStore, runs database.RunRepository) error {
	slog.Info("Starting vehicle feed server", "version", appCfg.Version)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(pipeline, time.Duration(appCfg.SchedulerInterval)*time.Second, appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(feedStore, runs, scheduler, pipeline.Metrics.Handler())
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "feed", fmt.Sprintf("http://localhost:%s/feed.xml", appCfg.Port))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case serveErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}

func toFeedRejections(rows []database.Rejection) []feed.Rejection {
	out := make([]feed.Rejection, 0, len(rows))
	for _, r := range rows {
		out = append(out, feed.Rejection{Index: r.RecordIndex, ID: r.VehicleID, Reason: r.Reason})
	}
	return out
}
