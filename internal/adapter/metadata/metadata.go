// Package metadata reads the static CSV mirror of Mesonet station metadata.
package metadata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
)

// ErrMissingColumn is returned when the header row has no station ID column.
var ErrMissingColumn = errors.New("metadata csv: missing station_id column")

// columnAliases maps accepted header names to the Station field they fill.
var columnAliases = map[string]string{
	"station_id": "id",
	"id":         "id",
	"name":       "name",
	"full_name":  "full_name",
	"lat":        "lat",
	"latitude":   "lat",
	"lng":        "lng",
	"lon":        "lng",
	"longitude":  "lng",
	"elevation":  "elevation",
	"elev_m":     "elevation",
	"status":     "status",
}

// Source loads stations from a local CSV file or an http(s) URL.
type Source struct {
	location   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSource creates a metadata source. location is a file path or http(s) URL.
func NewSource(location string, timeout time.Duration, logger *slog.Logger) *Source {
	return &Source{
		location:   location,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Stations reads and parses the mirror on every call; callers cache.
func (s *Source) Stations(ctx context.Context) ([]domain.Station, error) {
	rc, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	stations, err := Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.location, err)
	}
	s.logger.Debug("station metadata loaded", "source", s.location, "stations", len(stations))
	return stations, nil
}

func (s *Source) open(ctx context.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(s.location, "http://") && !strings.HasPrefix(s.location, "https://") {
		f, err := os.Open(s.location)
		if err != nil {
			return nil, fmt.Errorf("open station metadata: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch station metadata: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch station metadata: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Parse reads stations from CSV. The header row names the columns in any
// order; unknown columns are ignored and rows without an ID are skipped.
func Parse(r io.Reader) ([]domain.Station, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := columnAliases[key]; ok {
			if _, seen := cols[field]; !seen {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["id"]; !ok {
		return nil, ErrMissingColumn
	}

	var out []domain.Station
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		id := field("id")
		if id == "" {
			continue
		}
		out = append(out, domain.Station{
			ID:        id,
			Name:      field("name"),
			FullName:  field("full_name"),
			Lat:       parseFloat(field("lat")),
			Lng:       parseFloat(field("lng")),
			Elevation: parseFloat(field("elevation")),
			Status:    domain.NormalizeStationStatus(field("status")),
		})
	}
	return out, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
