// Package export renders station data as CSV reports with a fixed column order.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
)

// Format selects the layout of a measurement report.
type Format string

const (
	// FormatMeasurements is one row per station, timestamp and variable.
	FormatMeasurements Format = "measurements"
	// FormatWide is one row per timestamp with a column per variable.
	FormatWide Format = "wide"
)

// Column headers per report type.
var (
	MeasurementsHeader = []string{"station_id", "timestamp", "variable", "value", "flag"}
	StationsHeader     = []string{"station_id", "name", "lat", "lng", "elevation", "status"}
	HealthHeader       = []string{"station_id", "name", "status", "latency_minutes", "battery_volts", "issues"}
)

// ParseFormat accepts "measurements" or "wide". Empty means measurements.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatMeasurements:
		return FormatMeasurements, nil
	case FormatWide:
		return FormatWide, nil
	default:
		return "", fmt.Errorf("invalid format %q (allowed: measurements, wide)", s)
	}
}

// Request describes a measurement report.
type Request struct {
	StationID string
	Variables []string // column order for the wide format
	Format    Format
	Units     domain.UnitSystem
	Hourly    bool
}

// Write renders rows as the report described by req.
func Write(w io.Writer, req Request, rows []domain.Measurement) error {
	if req.Hourly {
		set := domain.AggregateHourlySet(domain.BuildSeries(rows))
		if req.Format == FormatWide {
			return WriteWide(w, set, variablesOrDefault(req.Variables, set), req.Units)
		}
		return WriteMeasurements(w, seriesRows(req.StationID, set), req.Units)
	}
	if req.Format == FormatWide {
		set := domain.BuildSeries(rows)
		return WriteWide(w, set, variablesOrDefault(req.Variables, set), req.Units)
	}
	return WriteMeasurements(w, rows, req.Units)
}

// WriteMeasurements writes one row per measurement, ordered by timestamp then
// variable. Missing values are written as empty cells.
func WriteMeasurements(w io.Writer, rows []domain.Measurement, units domain.UnitSystem) error {
	sorted := make([]domain.Measurement, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		if sorted[i].StationID != sorted[j].StationID {
			return sorted[i].StationID < sorted[j].StationID
		}
		return sorted[i].Variable < sorted[j].Variable
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(MeasurementsHeader); err != nil {
		return err
	}
	for _, m := range sorted {
		value := ""
		if m.Value != nil {
			value = formatValue(domain.Convert(domain.QuantityFor(m.Variable), *m.Value, units))
		}
		if err := cw.Write([]string{
			m.StationID,
			formatTime(m),
			m.Variable,
			value,
			strconv.Itoa(m.Flag),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWide writes one row per distinct timestamp with a column per variable
// in the given order.
func WriteWide(w io.Writer, set domain.SeriesSet, variables []string, units domain.UnitSystem) error {
	set = domain.ConvertSeriesSet(set, units)

	cells := make(map[int64][]string)
	var stamps []int64
	for col, v := range variables {
		for _, p := range set[v] {
			k := p.Timestamp.UnixNano()
			row, ok := cells[k]
			if !ok {
				row = make([]string, len(variables)+1)
				row[0] = p.Timestamp.In(domain.HST).Format(domain.APITimeLayout)
				cells[k] = row
				stamps = append(stamps, k)
			}
			row[col+1] = formatValue(p.Value)
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"timestamp"}, variables...)); err != nil {
		return err
	}
	for _, k := range stamps {
		if err := cw.Write(cells[k]); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStations writes station metadata in the order given.
func WriteStations(w io.Writer, stations []domain.Station) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StationsHeader); err != nil {
		return err
	}
	for _, s := range stations {
		if err := cw.Write([]string{
			s.ID,
			s.DisplayName(),
			formatValue(s.Lat),
			formatValue(s.Lng),
			formatValue(s.Elevation),
			domain.NormalizeStationStatus(s.Status),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHealth writes the station diagnostic table. Issues are joined with "; ".
func WriteHealth(w io.Writer, report domain.HealthReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HealthHeader); err != nil {
		return err
	}
	for _, h := range report.Stations {
		if err := cw.Write([]string{
			h.StationID,
			h.Name,
			string(h.Status),
			formatOptional(h.LatencyMinutes, 1),
			formatOptional(h.BatteryVolts, 2),
			strings.Join(h.Issues, "; "),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename names a measurement report for a station and window, e.g.
// "mesonet_0115_20240425-20240426.csv".
func Filename(stationID string, window domain.Window) string {
	const day = "20060102"
	return fmt.Sprintf("mesonet_%s_%s-%s.csv",
		stationID, window.Start.In(domain.HST).Format(day), window.End.In(domain.HST).Format(day))
}

func seriesRows(stationID string, set domain.SeriesSet) []domain.Measurement {
	var rows []domain.Measurement
	for _, v := range set.Variables() {
		for _, p := range set[v] {
			rows = append(rows, domain.Measurement{
				StationID: stationID,
				Variable:  v,
				Value:     domain.Float(p.Value),
				Timestamp: p.Timestamp,
			})
		}
	}
	return rows
}

func variablesOrDefault(vars []string, set domain.SeriesSet) []string {
	if len(vars) > 0 {
		return vars
	}
	return set.Variables()
}

func formatTime(m domain.Measurement) string {
	return m.Timestamp.In(domain.HST).Format(domain.APITimeLayout)
}

// formatValue rounds to 4 decimals so converted values stay readable.
func formatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}

func formatOptional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
