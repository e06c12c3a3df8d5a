package domain

import (
	"fmt"
	"sort"
	"time"
)

// HealthStatus grades a station in the diagnostic table.
type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthInactive HealthStatus = "inactive"
)

// Variables inspected by the health evaluation.
const (
	VarBatteryVolts = "BattVolt"
	VarPanelTemp    = "Tpanel"
)

const issueTimeLayout = "2006-01-02 15:04 MST"

func (s HealthStatus) rank() int {
	switch s {
	case HealthWarning:
		return 1
	case HealthCritical:
		return 2
	default:
		return 0
	}
}

func worst(a, b HealthStatus) HealthStatus {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// HealthThresholds are the limits used to grade a station.
type HealthThresholds struct {
	LatencyWarning  time.Duration
	LatencyCritical time.Duration
	BatteryWarning  float64 // volts; below this is a warning
	BatteryCritical float64 // volts; below this is critical
	PanelTempMax    float64 // °C; above this is a warning
}

// DefaultHealthThresholds grade a station reporting every 5 minutes on a 12 V logger.
var DefaultHealthThresholds = HealthThresholds{
	LatencyWarning:  15 * time.Minute,
	LatencyCritical: 60 * time.Minute,
	BatteryWarning:  12.0,
	BatteryCritical: 11.5,
	PanelTempMax:    60,
}

// StationHealth is one row of the diagnostic table.
type StationHealth struct {
	StationID       string       `json:"station_id"`
	Name            string       `json:"name"`
	Status          HealthStatus `json:"status"`
	LastObservation *time.Time   `json:"last_observation,omitempty"`
	LatencyMinutes  *float64     `json:"latency_minutes,omitempty"`
	BatteryVolts    *float64     `json:"battery_volts,omitempty"`
	Issues          []string     `json:"issues,omitempty"`
}

// HealthReport is the diagnostic table for all stations.
type HealthReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Stations    []StationHealth `json:"stations"`
}

// EvaluateStationHealth grades a station from its most recent measurement rows.
// Inactive and planned stations are not evaluated.
func EvaluateStationHealth(now time.Time, st Station, rows []Measurement, th HealthThresholds) StationHealth {
	h := StationHealth{StationID: st.ID, Name: st.DisplayName(), Status: HealthOK}
	if !st.IsActive() {
		h.Status = HealthInactive
		return h
	}

	latest := LatestByVariable(rows)
	if len(latest) == 0 {
		h.Status = HealthCritical
		h.Issues = []string{"offline: no observations"}
		return h
	}

	var newest time.Time
	for _, m := range latest {
		if m.Timestamp.After(newest) {
			newest = m.Timestamp
		}
	}
	newest = newest.In(HST)
	latency := now.Sub(newest)
	latencyMin := latency.Minutes()
	h.LastObservation = &newest
	h.LatencyMinutes = &latencyMin

	switch {
	case latency > th.LatencyCritical:
		h.Status = worst(h.Status, HealthCritical)
		h.Issues = append(h.Issues, "offline: last observation "+newest.Format(issueTimeLayout))
	case latency > th.LatencyWarning:
		h.Status = worst(h.Status, HealthWarning)
		h.Issues = append(h.Issues, "delayed: last observation "+newest.Format(issueTimeLayout))
	}

	if m, ok := latest[VarBatteryVolts]; ok && m.Value != nil {
		v := *m.Value
		h.BatteryVolts = &v
		switch {
		case v < th.BatteryCritical:
			h.Status = worst(h.Status, HealthCritical)
			h.Issues = append(h.Issues, fmt.Sprintf("battery critical: %.2f V", v))
		case v < th.BatteryWarning:
			h.Status = worst(h.Status, HealthWarning)
			h.Issues = append(h.Issues, fmt.Sprintf("battery low: %.2f V", v))
		}
	}

	if m, ok := latest[VarPanelTemp]; ok && m.Value != nil && *m.Value > th.PanelTempMax {
		h.Status = worst(h.Status, HealthWarning)
		h.Issues = append(h.Issues, fmt.Sprintf("logger panel hot: %.1f °C", *m.Value))
	}

	var flagged []string
	for v, m := range latest {
		if m.Flag != 0 {
			flagged = append(flagged, fmt.Sprintf("%s flagged (%d)", v, m.Flag))
		}
	}
	if len(flagged) > 0 {
		sort.Strings(flagged)
		h.Status = worst(h.Status, HealthWarning)
		h.Issues = append(h.Issues, flagged...)
	}

	return h
}

// BuildHealthReport evaluates every station against its rows, ordered by station ID.
func BuildHealthReport(now time.Time, stations []Station, rows []Measurement, th HealthThresholds) HealthReport {
	byStation := GroupByStation(rows)
	report := HealthReport{GeneratedAt: now, Stations: make([]StationHealth, 0, len(stations))}
	for _, st := range stations {
		report.Stations = append(report.Stations, EvaluateStationHealth(now, st, byStation[st.ID], th))
	}
	sort.Slice(report.Stations, func(i, j int) bool {
		return report.Stations[i].StationID < report.Stations[j].StationID
	})
	return report
}

// SameGrades reports whether two reports assign the same status, issues and
// last observation to the same stations. Latency is ignored because it moves
// with the clock.
func (r HealthReport) SameGrades(o HealthReport) bool {
	if len(r.Stations) != len(o.Stations) {
		return false
	}
	for i := range r.Stations {
		a, b := r.Stations[i], o.Stations[i]
		if a.StationID != b.StationID || a.Status != b.Status || !sameTime(a.LastObservation, b.LastObservation) {
			return false
		}
		if len(a.Issues) != len(b.Issues) {
			return false
		}
		for j := range a.Issues {
			if a.Issues[j] != b.Issues[j] {
				return false
			}
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
