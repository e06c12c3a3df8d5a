package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Point is one [timestamp, value] pair. It serializes as a two-element JSON
// array of Unix milliseconds and value, the shape chart clients consume.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// MarshalJSON encodes the point as [ms, value].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(p.Timestamp.UnixMilli()), p.Value})
}

// UnmarshalJSON decodes a [ms, value] pair.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("parse point: %w", err)
	}
	p.Timestamp = time.UnixMilli(int64(pair[0])).In(HST)
	p.Value = pair[1]
	return nil
}

// Series is the time-ordered points of one variable.
type Series []Point

// SeriesSet holds one series per variable ID.
type SeriesSet map[string]Series

// Snapshot is the current view of one station: the series from the most
// recent poll cycle whose data differed from the one before.
type Snapshot struct {
	StationID string    `json:"station_id"`
	Series    SeriesSet `json:"series"`
	Changed   []string  `json:"changed,omitempty"`
	Window    Window    `json:"window"`
	Sequence  uint64    `json:"sequence"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BuildSeries groups measurement rows into per-variable series sorted by
// timestamp. Rows without a value are skipped.
func BuildSeries(rows []Measurement) SeriesSet {
	set := make(SeriesSet)
	for _, r := range rows {
		if r.Value == nil {
			continue
		}
		set[r.Variable] = append(set[r.Variable], Point{Timestamp: r.Timestamp, Value: *r.Value})
	}
	for v := range set {
		s := set[v]
		sort.SliceStable(s, func(i, j int) bool { return s[i].Timestamp.Before(s[j].Timestamp) })
	}
	return set
}

// SeriesEqual reports whether two series have the same length and pairwise
// equal timestamps and values.
func SeriesEqual(a, b Series) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Timestamp.Equal(b[i].Timestamp) || a[i].Value != b[i].Value {
			return false
		}
	}
	return true
}

// ChangedVariables lists, sorted, the variables whose series were added,
// removed, or differ between prev and next. An empty result means no update
// is needed.
func ChangedVariables(prev, next SeriesSet) []string {
	var changed []string
	for v, s := range next {
		old, ok := prev[v]
		if !ok || !SeriesEqual(old, s) {
			changed = append(changed, v)
		}
	}
	for v := range prev {
		if _, ok := next[v]; !ok {
			changed = append(changed, v)
		}
	}
	sort.Strings(changed)
	return changed
}

// Variables returns the sorted variable IDs in the set.
func (s SeriesSet) Variables() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Latest returns the newest point of the series.
func (s Series) Latest() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}
