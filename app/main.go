package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-epub/app/api"
	"github.com/lysyi3m/rss-epub/app/cfg"
	"github.com/lysyi3m/rss-epub/app/database"
	"github.com/lysyi3m/rss-epub/app/dedup"
	"github.com/lysyi3m/rss-epub/app/epub"
	"github.com/lysyi3m/rss-epub/app/feed"
	"github.com/lysyi3m/rss-epub/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting RSS EPUB", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	feeds, err := feed.LoadConfigs(appCfg.FeedsFile)
	if err != nil {
		return fmt.Errorf("failed to load feed configurations: %w", err)
	}
	slog.Info("Feed configurations loaded", "file", appCfg.FeedsFile, "count", len(feeds))

	httpClient := &http.Client{Timeout: time.Duration(appCfg.Timeout) * time.Second}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, appCfg.MaxBodyBytes)

	store := dedup.NewStore(database.NewSeenArticleRepository(db))
	digest := tasks.NewDigestTask(
		feeds,
		tasks.NewPipeline(fetcher, appCfg.ImageWorkers),
		tasks.NewRunner(appCfg.WorkerCount),
		store,
		epub.NewBuilder(appCfg.Title, appCfg.Language),
		appCfg.OutputDir,
		appCfg.ArchiveName,
	)
	scheduler := tasks.NewScheduler(digest, time.Duration(appCfg.Interval)*time.Second)

	if appCfg.Interval == 0 {
		return runOnce(scheduler)
	}

	return serve(appCfg, feeds, store, scheduler)
}

func runOnce(scheduler *tasks.Scheduler) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := scheduler.Run(ctx)
	if err != nil {
		return err
	}

	if summary.Archive == "" {
		slog.Info("No new articles found, no archive written")
		return nil
	}

	slog.Info("Archive written", "archive", summary.Archive, "articles", summary.Articles, "images", summary.Images)
	return nil
}

func serve(appCfg *cfg.Cfg, feeds []*feed.Config, store *dedup.Store, scheduler *tasks.Scheduler) error {
	slog.Info("Starting background scheduler", "interval", time.Duration(appCfg.Interval)*time.Second, "workers", appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(feeds, store, scheduler, appCfg.OutputDir)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case serveErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("RSS EPUB server shutdown complete")
	return serveErr
}
