package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Measurement is a single timestamped value for one variable at one station.
// A nil Value means the logger reported no reading.
type Measurement struct {
	StationID string    `json:"station_id"`
	Variable  string    `json:"variable"`
	Value     *float64  `json:"value"`
	Flag      int       `json:"flag"`
	Timestamp time.Time `json:"timestamp"`
}

// MeasurementQuery parameterizes a measurements request.
type MeasurementQuery struct {
	StationIDs []string
	Variables  []string
	Window     Window
	Limit      int
}

// rawMeasurement mirrors the API row before value and flag coercion.
type rawMeasurement struct {
	StationID string          `json:"station_id"`
	Variable  string          `json:"variable"`
	Value     json.RawMessage `json:"value"`
	Flag      json.RawMessage `json:"flag"`
	Timestamp string          `json:"timestamp"`
}

// apiTimeLayouts are tried in order when parsing row timestamps.
// Layouts without an offset are interpreted in HST.
var apiTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON accepts numeric or string values and flags, and null values.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	var raw rawMeasurement
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse measurement: %w", err)
	}

	ts, err := parseAPITime(raw.Timestamp)
	if err != nil {
		return fmt.Errorf("parse measurement timestamp: %w", err)
	}

	*m = Measurement{
		StationID: raw.StationID,
		Variable:  raw.Variable,
		Value:     parseLooseFloat(raw.Value),
		Timestamp: ts,
	}
	if f := parseLooseFloat(raw.Flag); f != nil {
		m.Flag = int(*f)
	}
	return nil
}

func parseAPITime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range apiTimeLayouts {
		t, err := time.ParseInLocation(layout, s, HST)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// parseLooseFloat decodes a JSON number or numeric string. Null, empty and
// unparseable input yield nil.
func parseLooseFloat(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	} else {
		s = string(raw)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Float returns a pointer to v, for building measurements in code.
func Float(v float64) *float64 {
	return &v
}

// LatestByVariable returns the newest row per variable, keeping rows with nil values.
func LatestByVariable(rows []Measurement) map[string]Measurement {
	latest := make(map[string]Measurement)
	for _, r := range rows {
		cur, ok := latest[r.Variable]
		if !ok || r.Timestamp.After(cur.Timestamp) {
			latest[r.Variable] = r
		}
	}
	return latest
}

// GroupByStation splits rows per station ID.
func GroupByStation(rows []Measurement) map[string][]Measurement {
	out := make(map[string][]Measurement)
	for _, r := range rows {
		out[r.StationID] = append(out[r.StationID], r)
	}
	return out
}
