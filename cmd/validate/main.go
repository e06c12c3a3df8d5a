// Command validate checks the Mesonet fixtures produced by genmock: station
// metadata, measurement rows, hourly aggregation and the CSV export layouts.
// It re-derives each result independently and reports every disagreement.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -stations data/mock/stations.json \
//	  -measurements data/mock/measurements.json
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/export"
)

// Hawaiian Islands bounding box.
const (
	minLat, maxLat = 18.5, 22.5
	minLng, maxLng = -160.5, -154.5
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	stationsPath := flag.String("stations", "", "path to the station list fixture")
	measurementsPath := flag.String("measurements", "", "path to the measurement rows fixture")
	flag.Parse()

	if *stationsPath == "" || *measurementsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*stationsPath, *measurementsPath); code != 0 {
		os.Exit(code)
	}
}

func run(stationsPath, measurementsPath string) int {
	fmt.Println("=== Mesonet Fixture Validation ===")
	fmt.Println()

	stations, err := loadJSON[domain.Station](stationsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load stations: %v\n", err)
		return 1
	}
	rows, err := loadJSON[domain.Measurement](measurementsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load measurements: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStations(stations),
		validateMeasurements(rows, stations),
		validateHourly(rows),
		validateExport(rows),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d stations, %d measurement rows\n", len(stations), len(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ── Phase 1: station metadata ──

func validateStations(stations []domain.Station) *phase {
	p := &phase{name: "Station metadata"}
	if len(stations) == 0 {
		p.errorf("no stations")
		return p
	}
	seen := make(map[string]bool, len(stations))
	for i, st := range stations {
		if err := domain.ValidateStationID(st.ID); err != nil {
			p.errorf("station[%d]: %v", i, err)
		}
		if seen[st.ID] {
			p.errorf("station[%d]: duplicate id %s", i, st.ID)
		}
		seen[st.ID] = true
		if st.Name == "" {
			p.errorf("station %s: name is empty", st.ID)
		}
		if st.Status != domain.NormalizeStationStatus(st.Status) {
			p.errorf("station %s: status %q is not normalized", st.ID, st.Status)
		}
		if st.Lat < minLat || st.Lat > maxLat || st.Lng < minLng || st.Lng > maxLng {
			p.errorf("station %s: coordinates (%g, %g) outside Hawaiʻi", st.ID, st.Lat, st.Lng)
		}
	}
	return p
}

// ── Phase 2: measurement rows ──

func validateMeasurements(rows []domain.Measurement, stations []domain.Station) *phase {
	p := &phase{name: "Measurement rows"}
	byID := make(map[string]domain.Station, len(stations))
	for _, st := range stations {
		byID[st.ID] = st
	}

	type key struct {
		station, variable string
		ts                int64
	}
	seen := make(map[key]bool, len(rows))
	for i, m := range rows {
		st, ok := byID[m.StationID]
		switch {
		case !ok:
			p.errorf("row %d: unknown station %q", i, m.StationID)
		case !st.IsActive():
			p.errorf("row %d: station %s is %s but has observations", i, st.ID, st.Status)
		}
		if m.Variable == "" {
			p.errorf("row %d: variable is empty", i)
		}
		if m.Value == nil {
			p.errorf("row %d: value is missing", i)
		}
		if m.Timestamp.IsZero() {
			p.errorf("row %d: timestamp is zero", i)
		} else if m.Timestamp.Unix()%300 != 0 {
			p.errorf("row %d: timestamp %s is not on a 5-minute boundary", i, domain.FormatAPITime(m.Timestamp))
		}
		k := key{m.StationID, m.Variable, m.Timestamp.Unix()}
		if seen[k] {
			p.errorf("row %d: duplicate %s/%s at %s", i, m.StationID, m.Variable, domain.FormatAPITime(m.Timestamp))
		}
		seen[k] = true
	}
	return p
}

// ── Phase 3: hourly aggregation ──

func validateHourly(rows []domain.Measurement) *phase {
	p := &phase{name: "Hourly aggregation"}
	for stationID, stRows := range domain.GroupByStation(rows) {
		set := domain.BuildSeries(stRows)
		hourly := domain.AggregateHourlySet(set)
		for _, v := range set.Variables() {
			want := aggregateByHand(set[v], domain.AggregationFor(v))
			got := hourly[v]
			if len(got) != len(want) {
				p.errorf("%s/%s: %d hourly points, expected %d", stationID, v, len(got), len(want))
				continue
			}
			for i := range got {
				if !got[i].Timestamp.Equal(want[i].Timestamp) || !floatEq(got[i].Value, want[i].Value) {
					p.errorf("%s/%s: hour %s = %g, expected %s = %g", stationID, v,
						domain.FormatAPITime(got[i].Timestamp), got[i].Value,
						domain.FormatAPITime(want[i].Timestamp), want[i].Value)
				}
			}
		}
	}
	return p
}

// aggregateByHand buckets by whole hours since the epoch, which line up with
// HST hours because the zone offset is a whole number of hours.
func aggregateByHand(s domain.Series, agg domain.Aggregation) domain.Series {
	sums := map[int64]float64{}
	counts := map[int64]int{}
	seen := map[int64]bool{}
	for _, pt := range s {
		if seen[pt.Timestamp.UnixNano()] {
			continue
		}
		seen[pt.Timestamp.UnixNano()] = true
		h := pt.Timestamp.Unix() / 3600
		sums[h] += pt.Value
		counts[h]++
	}
	var hours []int64
	for h, n := range counts {
		if n == domain.SamplesPerHour {
			hours = append(hours, h)
		}
	}
	slices.Sort(hours)

	out := make(domain.Series, 0, len(hours))
	for _, h := range hours {
		v := sums[h]
		if agg == domain.AggregateMean {
			v /= float64(counts[h])
		}
		out = append(out, domain.Point{Timestamp: time.Unix(h*3600, 0).In(domain.HST), Value: v})
	}
	return out
}

// ── Phase 4: CSV export ──

func validateExport(rows []domain.Measurement) *phase {
	p := &phase{name: "CSV export layouts"}
	for stationID, stRows := range domain.GroupByStation(rows) {
		checkMeasurementsCSV(p, stationID, stRows)
		checkWideCSV(p, stationID, stRows)
	}
	return p
}

func checkMeasurementsCSV(p *phase, stationID string, rows []domain.Measurement) {
	var buf bytes.Buffer
	if err := export.Write(&buf, export.Request{StationID: stationID, Format: export.FormatMeasurements, Units: domain.Metric}, rows); err != nil {
		p.errorf("%s: write measurements: %v", stationID, err)
		return
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		p.errorf("%s: re-read measurements: %v", stationID, err)
		return
	}
	if len(records) == 0 || !slices.Equal(records[0], export.MeasurementsHeader) {
		p.errorf("%s: measurements header mismatch", stationID)
		return
	}
	if got := len(records) - 1; got != len(rows) {
		p.errorf("%s: %d measurement rows exported, expected %d", stationID, got, len(rows))
	}
	for i, rec := range records[1:] {
		if rec[0] != stationID {
			p.errorf("%s: exported row %d has station %q", stationID, i+1, rec[0])
		}
		if i > 0 && rec[1] < records[i][1] {
			p.errorf("%s: exported row %d is out of time order", stationID, i+1)
		}
	}
}

func checkWideCSV(p *phase, stationID string, rows []domain.Measurement) {
	set := domain.BuildSeries(rows)
	variables := set.Variables()

	var buf bytes.Buffer
	if err := export.Write(&buf, export.Request{StationID: stationID, Variables: variables, Format: export.FormatWide, Units: domain.Metric}, rows); err != nil {
		p.errorf("%s: write wide: %v", stationID, err)
		return
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		p.errorf("%s: re-read wide: %v", stationID, err)
		return
	}
	if len(records) == 0 || !slices.Equal(records[0], append([]string{"timestamp"}, variables...)) {
		p.errorf("%s: wide header mismatch", stationID)
		return
	}

	stamps := map[int64]bool{}
	for _, s := range set {
		for _, pt := range s {
			stamps[pt.Timestamp.Unix()] = true
		}
	}
	if got := len(records) - 1; got != len(stamps) {
		p.errorf("%s: %d wide rows exported, expected %d", stationID, got, len(stamps))
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
