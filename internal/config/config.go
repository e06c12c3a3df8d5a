package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
)

// DefaultVariables are the dashboard variables polled when VARIABLES is unset.
const DefaultVariables = "Tair_1_Avg,RH_1_Avg,RF_1_Tot300s,WS_1_Avg,WDrs_1_Avg,SWin_1_Avg,P_1"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Mesonet API configuration.
	MesonetBaseURL   string
	MesonetToken     string
	MesonetTimeout   time.Duration
	MesonetRateLimit float64 // requests per second
	MesonetRateBurst int

	// Polling configuration.
	StationIDs         []string
	Variables          []string
	SeriesWindow       time.Duration
	SeriesPollInterval time.Duration
	HealthEnabled      bool
	HealthPollInterval time.Duration
	Units              domain.UnitSystem

	// Station metadata.
	StationCacheSize   int
	StationCacheTTL    time.Duration
	StationMetadataCSV string // local path or http(s) URL of the metadata mirror

	// Optional sinks.
	RedisAddr     string
	RedisTTL      time.Duration
	KafkaBrokers  []string
	KafkaTopic    string
	RequestLogURL string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mesonetTimeout, err := parseDuration("MESONET_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	seriesInterval, err := parseDuration("SERIES_POLL_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	healthInterval, err := parseDuration("HEALTH_POLL_INTERVAL", "300s")
	if err != nil {
		return nil, err
	}
	stationCacheTTL, err := parseDuration("STATION_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	redisTTL, err := parseDuration("REDIS_TTL", "24h")
	if err != nil {
		return nil, err
	}

	window, err := domain.ParseDurationSelector(sharedcfg.EnvOrDefault("SERIES_WINDOW", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERIES_WINDOW: %w", err)
	}

	units, err := domain.ParseUnitSystem(sharedcfg.EnvOrDefault("UNITS", string(domain.Metric)))
	if err != nil {
		return nil, fmt.Errorf("invalid UNITS: %w", err)
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MESONET_RATE_LIMIT", "5"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid MESONET_RATE_LIMIT")
	}
	rateBurst, err := parsePositiveInt("MESONET_RATE_BURST", 5)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("STATION_CACHE_SIZE", 500)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MesonetBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("MESONET_API_URL", "https://api.hcdp.ikewai.org"), "/"),
		MesonetToken:     os.Getenv("MESONET_API_TOKEN"),
		MesonetTimeout:   mesonetTimeout,
		MesonetRateLimit: rateLimit,
		MesonetRateBurst: rateBurst,

		StationIDs:         parseList(os.Getenv("STATION_IDS")),
		Variables:          parseList(sharedcfg.EnvOrDefault("VARIABLES", DefaultVariables)),
		SeriesWindow:       window,
		SeriesPollInterval: seriesInterval,
		HealthEnabled:      sharedcfg.EnvOrDefault("HEALTH_ENABLED", "true") == "true",
		HealthPollInterval: healthInterval,
		Units:              units,

		StationCacheSize:   cacheSize,
		StationCacheTTL:    stationCacheTTL,
		StationMetadataCSV: os.Getenv("STATION_METADATA_CSV"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisTTL:      redisTTL,
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_TOPIC", "mesonet-snapshots"),
		RequestLogURL: os.Getenv("REQUEST_LOG_URL"),
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}

	if cfg.MesonetToken == "" {
		return nil, errors.New("MESONET_API_TOKEN is required")
	}
	for _, id := range cfg.StationIDs {
		if err := domain.ValidateStationID(id); err != nil {
			return nil, fmt.Errorf("invalid STATION_IDS: %w", err)
		}
	}
	if len(cfg.Variables) == 0 {
		return nil, errors.New("VARIABLES must name at least one variable")
	}
	if cfg.KafkaBrokers != nil && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// parseList splits a comma-separated value, trimming blanks.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
