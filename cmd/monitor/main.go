package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mesonet-monitor/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/mesonet-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/mesonet-monitor/internal/adapter/memory"
	"github.com/couchcryptid/mesonet-monitor/internal/adapter/mesonet"
	"github.com/couchcryptid/mesonet-monitor/internal/adapter/metadata"
	redisadapter "github.com/couchcryptid/mesonet-monitor/internal/adapter/redis"
	"github.com/couchcryptid/mesonet-monitor/internal/adapter/reqlog"
	"github.com/couchcryptid/mesonet-monitor/internal/config"
	"github.com/couchcryptid/mesonet-monitor/internal/observability"
	"github.com/couchcryptid/mesonet-monitor/internal/poller"
)

const (
	requestLogQueue  = 256
	seriesRowLimit   = 100000
	warmStartTimeout = 5 * time.Second
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	client := mesonet.NewClient(cfg.MesonetBaseURL, cfg.MesonetToken, cfg.MesonetTimeout, cfg.MesonetRateLimit, cfg.MesonetRateBurst, metrics, logger)

	// Station metadata falls back to the static CSV mirror when configured.
	var fallback mesonet.StationSource
	if cfg.StationMetadataCSV != "" {
		fallback = metadata.NewSource(cfg.StationMetadataCSV, cfg.MesonetTimeout, logger)
		logger.Info("station metadata fallback enabled", "source", cfg.StationMetadataCSV)
	}
	stations := mesonet.NewCachedStations(client, fallback, cfg.StationCacheSize, cfg.StationCacheTTL, clock, metrics, logger)

	views := memory.New()
	sinks := poller.NewFanOut(logger, metrics)
	sinks.AddSnapshotSink("memory", views)
	sinks.AddHealthSink("memory", views)

	var store *redisadapter.Store
	if cfg.RedisAddr != "" {
		store = redisadapter.NewStore(redisadapter.NewClient(cfg.RedisAddr), cfg.RedisTTL, logger)
		warmStart(store, views, cfg.StationIDs, logger)
		sinks.AddSnapshotSink("redis", store)
		sinks.AddHealthSink("redis", store)
		logger.Info("redis store enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
	}

	var writer *kafkaadapter.Writer
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sinks.AddSnapshotSink("kafka", writer)
		logger.Info("kafka snapshot sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	series := make([]*poller.SeriesRefresher, 0, len(cfg.StationIDs))
	for _, id := range cfg.StationIDs {
		series = append(series, poller.NewSeriesRefresher(poller.SeriesConfig{
			StationID: id,
			Variables: cfg.Variables,
			Window:    cfg.SeriesWindow,
			Interval:  cfg.SeriesPollInterval,
			Limit:     seriesRowLimit,
		}, client, sinks, clock, logger, metrics))
	}

	var health *poller.HealthRefresher
	if cfg.HealthEnabled {
		healthCfg := poller.DefaultHealthConfig(cfg.StationIDs, cfg.Variables, cfg.HealthPollInterval)
		health = poller.NewHealthRefresher(healthCfg, stations, client, sinks, clock, logger, metrics)
	}

	manager := poller.NewManager(series, health, logger)

	api := &httpadapter.API{
		Stations:  stations,
		Views:     views,
		Refresher: manager,
		Fetcher:   client,
		Units:     cfg.Units,
		Variables: cfg.Variables,
		Window:    cfg.SeriesWindow,
		Clock:     clock,
	}

	var requests *reqlog.Logger
	if cfg.RequestLogURL != "" {
		requests = reqlog.New(cfg.RequestLogURL, requestLogQueue, cfg.MesonetTimeout, clock, metrics, logger)
		api.RequestLog = requests
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, manager, api, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if requests != nil {
		go requests.Run(ctx)
	}

	// Start poll loops.
	go manager.Start()

	<-ctx.Done()
	logger.Info("shutting down")

	manager.Destroy()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// warmStart seeds the in-memory views from Redis so the API can answer
// before the first poll cycle completes.
func warmStart(store *redisadapter.Store, views *memory.Store, stationIDs []string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), warmStartTimeout)
	defer cancel()

	if err := store.CheckReadiness(ctx); err != nil {
		logger.Warn("redis unavailable, skipping warm start", "error", err)
		return
	}
	restored := 0
	for _, id := range stationIDs {
		snap, ok, err := store.LoadSnapshot(ctx, id)
		if err != nil {
			logger.Warn("warm start failed", "station_id", id, "error", err)
			continue
		}
		if ok {
			_ = views.PublishSnapshot(ctx, snap)
			restored++
		}
	}
	if report, ok, err := store.LoadHealth(ctx); err == nil && ok {
		_ = views.PublishHealth(ctx, report)
	}
	logger.Info("warm start complete", "snapshots", restored)
}
