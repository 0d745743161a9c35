package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/Caliper/internal/api"
	"github.com/MikeSquared-Agency/Caliper/internal/cache"
	"github.com/MikeSquared-Agency/Caliper/internal/config"
	"github.com/MikeSquared-Agency/Caliper/internal/contextkey"
	"github.com/MikeSquared-Agency/Caliper/internal/learning"
	"github.com/MikeSquared-Agency/Caliper/internal/outcome"
	"github.com/MikeSquared-Agency/Caliper/internal/performance"
	"github.com/MikeSquared-Agency/Caliper/internal/store"
	"github.com/MikeSquared-Agency/Caliper/internal/telemetry"
	"github.com/MikeSquared-Agency/Caliper/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Logging.Level)}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Redis (optional). Without it the service runs on the in-process
	// cache: still correct, but prediction correlation stops working
	// across instances.
	var weightCache cache.Cache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("failed to connect to redis, using in-process cache", "error", err)
		} else {
			weightCache = rc
			defer rc.Close()
			logger.Info("connected to redis")
		}
	}
	if weightCache == nil {
		weightCache = cache.NewMemory()
	}

	// Events (optional)
	var publisher telemetry.Publisher
	if cfg.Events.URL != "" {
		np, err := telemetry.NewNATSPublisher(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to nats, running without events", "error", err)
		} else {
			publisher = np
			defer np.Close()
			logger.Info("connected to nats")
		}
	}
	sink := telemetry.NewEmitter(publisher, logger)

	keys, err := contextkey.NewGenerator(cfg.Context.Schema)
	if err != nil {
		logger.Error("invalid context key schema", "error", err)
		os.Exit(1)
	}

	// Services
	learner := learning.NewService(learning.Options{
		Store:      db,
		Cache:      weightCache,
		Telemetry:  sink,
		Logger:     logger,
		Schedule:   learning.ScheduleFromConfig(cfg.Learning),
		WeightsTTL: cfg.WeightsTTL(),
		Timeout:    cfg.BackendTimeout(),
	})

	tracker := performance.NewTracker(performance.Options{
		Store:     db,
		Telemetry: sink,
		Logger:    logger,
		Timeout:   cfg.BackendTimeout(),
	})

	collectorOpts := outcome.Options{
		Cache:            weightCache,
		Learning:         learner,
		Performance:      tracker,
		Telemetry:        sink,
		Logger:           logger,
		PredictionTTL:    cfg.PredictionTTL(),
		CorrectThreshold: cfg.Outcome.CorrectThreshold,
		Timeout:          cfg.BackendTimeout(),
	}
	if cfg.Outcome.AuditPredictions {
		collectorOpts.Store = db
	}
	collector := outcome.NewCollector(collectorOpts)

	validator := validation.NewService(validation.Options{
		Store:               db,
		Arms:                tracker,
		Weights:             learner,
		Telemetry:           sink,
		Logger:              logger,
		MinExamples:         cfg.Validation.MinExamples,
		MinSamplesPerArm:    cfg.Validation.MinSamplesPerArm,
		ConfidenceThreshold: cfg.Validation.ConfidenceThreshold,
		MinImprovement:      cfg.Validation.MinImprovement,
	})

	// Background loops
	go tracker.CompactLoop(ctx, cfg.CompactInterval(), cfg.SampleWindow())
	go validator.SweepLoop(ctx, cfg.SweepInterval())
	logger.Info("background loops started",
		"compact_interval", cfg.CompactInterval(),
		"sweep_interval", cfg.SweepInterval(),
	)

	// API server
	router := api.NewRouter(learner, collector, tracker, validator, keys, cfg.Server.AdminToken, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
