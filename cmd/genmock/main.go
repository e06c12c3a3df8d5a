// Command genmock generates deterministic Mesonet API fixtures for local
// development and tests: a station list and 5-minute measurement rows shaped
// like the /mesonet/db/measurements response. It runs the rows through the
// domain package to print the numbers test assertions depend on.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -stations-out data/mock/stations.json \
//	  -measurements-out data/mock/measurements.json \
//	  -hours 48
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
)

// fixtureEnd is the end of the generated window: noon HST on 2024-04-26.
var fixtureEnd = time.Date(2024, time.April, 26, 12, 0, 0, 0, domain.HST)

var stations = []domain.Station{
	{ID: "0115", Name: "Piiholo", FullName: "Piʻiholo Ranch", Lat: 20.8415, Lng: -156.2948, Elevation: 640, Status: domain.StationActive},
	{ID: "0119", Name: "Kulaimano", FullName: "Kulaimano Elementary", Lat: 19.8287, Lng: -155.1217, Elevation: 110, Status: domain.StationActive},
	{ID: "0521", Name: "Kehena", FullName: "Kehena Ditch Cabin", Lat: 20.1224, Lng: -155.7497, Elevation: 1250, Status: domain.StationPlanned},
}

// apiRow mirrors an API measurement row, which carries values as strings.
type apiRow struct {
	StationID string `json:"station_id"`
	Variable  string `json:"variable"`
	Value     string `json:"value"`
	Flag      int    `json:"flag"`
	Timestamp string `json:"timestamp"`
}

// generator produces a value for a station, sample index and time.
type generator func(station, i int, ts time.Time) float64

var generators = map[string]generator{
	"Tair_1_Avg": func(station, _ int, ts time.Time) float64 {
		h := float64(ts.Hour()) + float64(ts.Minute())/60
		return round(23-float64(station)*1.5+4*math.Sin((h-9)/24*2*math.Pi), 2)
	},
	"RH_1_Avg": func(_, i int, _ time.Time) float64 {
		return round(75+10*math.Cos(float64(i)/288*2*math.Pi), 1)
	},
	"RF_1_Tot300s": func(station, _ int, ts time.Time) float64 {
		// Afternoon showers on the windward station.
		if station == 1 && ts.Hour() >= 14 && ts.Hour() < 16 {
			return 0.254
		}
		return 0
	},
	"WS_1_Avg": func(_, i int, _ time.Time) float64 {
		return round(3+1.5*math.Sin(float64(i)/36), 2)
	},
	domain.VarBatteryVolts: func(station, i int, _ time.Time) float64 {
		return round(12.9-float64(station)*0.6-float64(i)*0.0005, 3)
	},
	domain.VarPanelTemp: func(_ int, _ int, ts time.Time) float64 {
		return round(25+15*math.Max(0, math.Sin(float64(ts.Hour()-6)/12*math.Pi)), 1)
	},
}

var variableOrder = []string{"Tair_1_Avg", "RH_1_Avg", "RF_1_Tot300s", "WS_1_Avg", domain.VarBatteryVolts, domain.VarPanelTemp}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	stationsOut := flag.String("stations-out", "", "output path for the station list fixture")
	measurementsOut := flag.String("measurements-out", "", "output path for the measurement rows fixture")
	hours := flag.Int("hours", 48, "hours of 5-minute samples to generate")
	flag.Parse()

	if *stationsOut == "" || *measurementsOut == "" || *hours <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -stations-out, -measurements-out")
	}

	// Fixed clock so the window is reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(fixtureEnd))
	defer domain.SetClock(nil)

	window := domain.WindowEnding(domain.Now(), time.Duration(*hours)*time.Hour)
	rows, parsed := generate(window)

	if err := writeJSON(*stationsOut, stations); err != nil {
		return fmt.Errorf("writing stations fixture: %w", err)
	}
	log.Printf("wrote stations fixture: %s (%d stations)", *stationsOut, len(stations))

	if err := writeJSON(*measurementsOut, rows); err != nil {
		return fmt.Errorf("writing measurements fixture: %w", err)
	}
	log.Printf("wrote measurements fixture: %s (%d rows)", *measurementsOut, len(rows))

	printStats(window, parsed)
	return nil
}

// generate emits rows for every active station. Every seventh hour is missing
// its :30 sample so hourly aggregation has incomplete buckets to drop.
func generate(window domain.Window) ([]apiRow, []domain.Measurement) {
	var rows []apiRow
	var parsed []domain.Measurement
	for si, st := range stations {
		if !st.IsActive() {
			continue
		}
		i := 0
		for ts := window.Start; ts.Before(window.End); ts = ts.Add(5 * time.Minute) {
			if ts.Hour()%7 == 0 && ts.Minute() == 30 {
				i++
				continue
			}
			for _, v := range variableOrder {
				value := generators[v](si, i, ts)
				rows = append(rows, apiRow{
					StationID: st.ID,
					Variable:  v,
					Value:     strconv.FormatFloat(value, 'f', -1, 64),
					Timestamp: domain.FormatAPITime(ts),
				})
				parsed = append(parsed, domain.Measurement{
					StationID: st.ID,
					Variable:  v,
					Value:     domain.Float(value),
					Timestamp: ts,
				})
			}
			i++
		}
	}
	return rows, parsed
}

func printStats(window domain.Window, rows []domain.Measurement) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Window: %s .. %s\n", domain.FormatAPITime(window.Start), domain.FormatAPITime(window.End))
	fmt.Printf("Rows: %d\n", len(rows))

	byStation := domain.GroupByStation(rows)
	for _, st := range stations {
		stRows, ok := byStation[st.ID]
		if !ok {
			continue
		}
		set := domain.BuildSeries(stRows)
		hourly := domain.AggregateHourlySet(set)
		fmt.Printf("\nStation %s (%s):\n", st.ID, st.DisplayName())
		for _, v := range variableOrder {
			var total float64
			for _, p := range hourly[v] {
				total += p.Value
			}
			fmt.Printf("  %-14s samples=%d complete_hours=%d hourly_%s_total=%g\n",
				v, len(set[v]), len(hourly[v]), domain.AggregationFor(v), round(total, 3))
		}
	}

	report := domain.BuildHealthReport(window.End, stations, rows, domain.DefaultHealthThresholds)
	fmt.Println("\nHealth at window end:")
	for _, h := range report.Stations {
		fmt.Printf("  %s %s %v\n", h.StationID, h.Status, h.Issues)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
