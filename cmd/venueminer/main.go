// Package main wires together the venueminer batch binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/venueminer/venueminer/internal/api"
	"github.com/venueminer/venueminer/internal/browser"
	"github.com/venueminer/venueminer/internal/config"
	"github.com/venueminer/venueminer/internal/consolidate"
	"github.com/venueminer/venueminer/internal/enrich"
	"github.com/venueminer/venueminer/internal/extract"
	"github.com/venueminer/venueminer/internal/input"
	"github.com/venueminer/venueminer/internal/logging"
	"github.com/venueminer/venueminer/internal/pipeline"
	"github.com/venueminer/venueminer/internal/progress"
	"github.com/venueminer/venueminer/internal/progress/sinks"
	"github.com/venueminer/venueminer/internal/storage/postgres"
	"github.com/venueminer/venueminer/internal/venue"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	inputPath := flag.String("input", "", "Path to the venue batch CSV")
	outputPath := flag.String("output", "", "Path for the consolidated CSV (overrides config)")
	venueName := flag.String("venue-name", "", "Single venue name (alternative to --input)")
	venueAddr := flag.String("venue-address", "", "Single venue address")
	venueURL := flag.String("venue-url", "", "Single venue page URL")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	outPath := cfg.Output.Path
	if *outputPath != "" {
		outPath = *outputPath
	}

	var venues []venue.Venue
	switch {
	case *inputPath != "":
		venues, err = input.LoadBatchFile(*inputPath, input.Options{Delimiter: cfg.InputDelimiter()})
		if err != nil {
			logger.Fatal("load venue batch failed", zap.String("path", *inputPath), zap.Error(err))
		}
		logger.Info("venue batch loaded", zap.String("path", *inputPath), zap.Int("venues", len(venues)))
	case *venueURL != "" && *venueName != "":
		venues = []venue.Venue{{
			ID:      uuid.NewString(),
			Name:    *venueName,
			Address: *venueAddr,
			PageURL: *venueURL,
		}}
	default:
		logger.Fatal("either --input or --venue-name with --venue-url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, venues, outPath, logger); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, venues []venue.Venue, outPath string, logger *zap.Logger) error {
	br, err := browser.New(browser.Options{
		UserAgent:       cfg.Browser.UserAgent,
		NavigateTimeout: cfg.NavTimeout(),
		MaxSessions:     cfg.Browser.MaxSessions,
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if cerr := br.Close(); cerr != nil {
			logger.Warn("browser close failed", zap.Error(cerr))
		}
	}()

	cache, err := newCache(cfg)
	if err != nil {
		return err
	}

	var geo venue.GeoEnricher
	if cfg.Geo.APIKey == "" {
		logger.Warn("geo.api_key not set, geo enrichment disabled")
	} else {
		geoClient, err := enrich.NewGeoClient(enrich.GeoOptions{
			BaseURL:     cfg.Geo.BaseURL,
			APIKey:      cfg.Geo.APIKey,
			Language:    cfg.Geo.Language,
			RPS:         cfg.Geo.RPS,
			Timeout:     time.Duration(cfg.Geo.TimeoutSeconds) * time.Second,
			MaxAttempts: cfg.Geo.MaxRetries,
		}, cache, logger.Named("geo"))
		if err != nil {
			return fmt.Errorf("build geo client: %w", err)
		}
		geo = geoClient
	}

	var content venue.ContentEnricher
	contentClient, err := enrich.NewContentClient(enrich.ContentOptions{
		UserAgent:   cfg.Content.UserAgent,
		RPS:         cfg.Content.RPS,
		Timeout:     time.Duration(cfg.Content.TimeoutSeconds) * time.Second,
		MaxAttempts: cfg.Content.MaxRetries,
	}, cache, logger.Named("content"))
	if err != nil {
		return fmt.Errorf("build content client: %w", err)
	}
	content = contentClient

	var store venue.ResultStore
	if cfg.DB.DSN != "" {
		resultStore, err := postgres.NewResultStore(ctx, postgres.ResultStoreConfig{DSN: cfg.DB.DSN})
		if err != nil {
			return fmt.Errorf("connect result store: %w", err)
		}
		defer resultStore.Close()
		store = resultStore
	}

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("register progress metrics: %w", err)
	}
	tracker := progress.NewTracker(len(venues))
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		tracker,
		sinks.NewLogSink(logger.Named("events")),
		promSink,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(tracker, registry, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server error", zap.Error(err))
		}
	}()

	worker := pipeline.NewWorker(pipeline.WorkerDeps{
		Sessions:      br,
		Grid:          extract.NewGrid(logger.Named("grid")),
		Popup:         extract.NewPopup(logger.Named("popup"), cfg.RoomTimeout()),
		Geo:           geo,
		Content:       content,
		Logger:        logger.Named("worker"),
		VenueDeadline: cfg.VenueDeadline(),
	})
	scheduler := pipeline.NewScheduler(pipeline.SchedulerDeps{
		Processor:   worker,
		Concurrency: cfg.Pipeline.Concurrency,
		Emitter:     hub,
		Store:       store,
		Logger:      logger.Named("scheduler"),
	})

	results, failures := scheduler.Run(ctx, venues)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hub.Close(flushCtx); err != nil {
		logger.Warn("progress flush incomplete", zap.Error(err))
	}
	if err := srv.Shutdown(flushCtx); err != nil {
		logger.Warn("status server shutdown error", zap.Error(err))
	}

	if err := writeOutput(outPath, cfg.OutputDelimiter(), results); err != nil {
		return err
	}

	snap := tracker.Snapshot()
	logger.Info("run complete",
		zap.String("output", outPath),
		zap.Int("venues", snap.Total),
		zap.Int("succeeded", snap.Succeeded),
		zap.Int("partial", snap.Partial),
		zap.Int("failed", snap.Failed),
		zap.Int("rooms", snap.Rooms),
		zap.Duration("elapsed", snap.Elapsed),
	)
	for _, f := range failures {
		logger.Warn("venue failed",
			zap.String("venue_id", f.Venue.ID),
			zap.String("venue", f.Venue.Name),
			zap.String("reason", f.Reason),
		)
	}
	return nil
}

func newCache(cfg config.Config) (enrich.Cache, error) {
	if cfg.Cache.Backend != "redis" {
		return enrich.NewMemoryCache(), nil
	}
	opt, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse cache.redis_url: %w", err)
	}
	return enrich.NewRedisCache(redis.NewClient(opt), "venueminer", cfg.CacheTTL()), nil
}

func writeOutput(path string, delimiter rune, results []venue.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := consolidate.WriteCSV(f, consolidate.Flatten(results), delimiter); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}
