package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Station statuses reported by the API.
const (
	StationActive   = "active"
	StationInactive = "inactive"
	StationPlanned  = "planned"
)

// ErrInvalidStationID is returned when a station ID is not numeric text.
var ErrInvalidStationID = errors.New("invalid station id")

var stationIDRe = regexp.MustCompile(`^\d{1,6}$`)

// Station is a physical sensor installation.
type Station struct {
	ID        string  `json:"station_id"`
	Name      string  `json:"name"`
	FullName  string  `json:"full_name,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Elevation float64 `json:"elevation"`
	Status    string  `json:"status"`
}

// DisplayName prefers the full name and falls back to the short name, then the ID.
func (s Station) DisplayName() string {
	if s.FullName != "" {
		return s.FullName
	}
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// IsActive reports whether the station is currently reporting.
func (s Station) IsActive() bool {
	return NormalizeStationStatus(s.Status) == StationActive
}

// NormalizeStationStatus lower-cases a status and maps unknown values to "inactive".
func NormalizeStationStatus(status string) string {
	switch v := strings.ToLower(strings.TrimSpace(status)); v {
	case StationActive, StationInactive, StationPlanned:
		return v
	default:
		return StationInactive
	}
}

// ValidateStationID checks that id is numeric text.
func ValidateStationID(id string) error {
	if !stationIDRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidStationID, id)
	}
	return nil
}

// FilterStations returns the stations with the given status. An empty status returns all.
func FilterStations(stations []Station, status string) []Station {
	if status == "" {
		return stations
	}
	status = strings.ToLower(status)
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if NormalizeStationStatus(s.Status) == status {
			out = append(out, s)
		}
	}
	return out
}
