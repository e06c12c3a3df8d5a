// Command export fetches Mesonet data and writes a CSV report.
//
// Usage:
//
//	go run ./cmd/export -station 0115 -duration 7d -format wide -units imperial -out piiholo.csv
//	go run ./cmd/export -report stations -status active
//	go run ./cmd/export -report health -stations 0115,0521
//
// The API token and base URL are read from the same environment as the
// monitor (MESONET_API_TOKEN, MESONET_API_URL); a .env file is honored.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/mesonet-monitor/internal/adapter/mesonet"
	"github.com/couchcryptid/mesonet-monitor/internal/config"
	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/export"
	"github.com/couchcryptid/mesonet-monitor/internal/observability"
	"github.com/couchcryptid/mesonet-monitor/internal/poller"
)

type options struct {
	report    string
	stationID string
	stations  string
	status    string
	duration  string
	vars      string
	format    string
	units     string
	aggregate string
	out       string
}

func main() {
	var o options
	flag.StringVar(&o.report, "report", "measurements", "report type: measurements, stations, health")
	flag.StringVar(&o.stationID, "station", "", "station ID for a measurements report")
	flag.StringVar(&o.stations, "stations", "", "comma-separated station IDs for a health report (default: all)")
	flag.StringVar(&o.status, "status", "", "station status filter for a stations report")
	flag.StringVar(&o.duration, "duration", "24h", "look-back: 24h, 48h, 3d, 7d, 14d, 30d, or a Go duration")
	flag.StringVar(&o.vars, "vars", "", "comma-separated variable IDs (default: VARIABLES)")
	flag.StringVar(&o.format, "format", "measurements", "measurements report layout: measurements or wide")
	flag.StringVar(&o.units, "units", "", "metric or imperial (default: UNITS)")
	flag.StringVar(&o.aggregate, "aggregate", "", "none or hourly (hourly keeps complete hours only)")
	flag.StringVar(&o.out, "out", "", "output file (default: stdout)")
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}
}

func run(o options) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLoggerTo(os.Stderr, cfg)
	client := mesonet.NewClient(cfg.MesonetBaseURL, cfg.MesonetToken, cfg.MesonetTimeout, cfg.MesonetRateLimit, cfg.MesonetRateBurst, observability.NewMetricsWith(prometheus.NewRegistry()), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := io.Writer(os.Stdout)
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch o.report {
	case "measurements":
		return writeMeasurements(ctx, w, client, cfg, o, logger)
	case "stations":
		stations, err := client.Stations(ctx)
		if err != nil {
			return err
		}
		return export.WriteStations(w, domain.FilterStations(stations, o.status))
	case "health":
		return writeHealth(ctx, w, client, cfg, o)
	default:
		return fmt.Errorf("unknown report %q (allowed: measurements, stations, health)", o.report)
	}
}

func writeMeasurements(ctx context.Context, w io.Writer, client *mesonet.Client, cfg *config.Config, o options, logger *slog.Logger) error {
	if err := domain.ValidateStationID(o.stationID); err != nil {
		return fmt.Errorf("-station: %w", err)
	}
	d, err := domain.ParseDurationSelector(o.duration)
	if err != nil {
		return fmt.Errorf("-duration: %w", err)
	}
	format, err := export.ParseFormat(o.format)
	if err != nil {
		return err
	}
	hourly, err := parseAggregate(o.aggregate)
	if err != nil {
		return err
	}
	units := cfg.Units
	if o.units != "" {
		if units, err = domain.ParseUnitSystem(o.units); err != nil {
			return err
		}
	}
	vars := cfg.Variables
	if o.vars != "" {
		vars = splitList(o.vars)
	}

	window := domain.WindowEnding(domain.Now(), d)
	rows, err := client.Measurements(ctx, domain.MeasurementQuery{
		StationIDs: []string{o.stationID},
		Variables:  vars,
		Window:     window,
	})
	if err != nil {
		return err
	}
	logger.Info("measurements fetched", "station_id", o.stationID, "rows", len(rows), "window", d)

	return export.Write(w, export.Request{
		StationID: o.stationID,
		Variables: vars,
		Format:    format,
		Units:     units,
		Hourly:    hourly,
	}, rows)
}

func writeHealth(ctx context.Context, w io.Writer, client *mesonet.Client, cfg *config.Config, o options) error {
	hc := poller.DefaultHealthConfig(splitList(o.stations), cfg.Variables, 0)
	report, err := poller.EvaluateHealth(ctx, client, client, hc, domain.Now())
	if err != nil {
		return err
	}
	return export.WriteHealth(w, report)
}

// parseAggregate accepts "", "none" or "hourly".
func parseAggregate(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return false, nil
	case "hourly":
		return true, nil
	default:
		return false, fmt.Errorf("-aggregate: unknown value %q (allowed: none, hourly)", s)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
