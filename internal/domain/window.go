package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// HST is Hawaiʻi Standard Time, a fixed UTC-10 offset with no daylight saving.
var HST = time.FixedZone("HST", -10*60*60)

// MaxWindow is the longest look-back a single request may cover.
const MaxWindow = 31 * 24 * time.Hour

// APITimeLayout is the date format the Mesonet API expects in query parameters.
const APITimeLayout = "2006-01-02T15:04:05-07:00"

var (
	ErrUnknownDuration = errors.New("unknown duration")
	ErrDurationTooLong = errors.New("date range too long")
	ErrInvalidWindow   = errors.New("window end is before start")
)

// durationSelectors are the look-back choices offered by the duration selector.
var durationSelectors = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"48h": 48 * time.Hour,
	"3d":  3 * 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"14d": 14 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ParseDurationSelector resolves a selector like "3d" or any Go duration
// string ("6h") into a duration no longer than MaxWindow.
func ParseDurationSelector(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	d, ok := durationSelectors[s]
	if !ok {
		var err error
		d, err = time.ParseDuration(s)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrUnknownDuration, s)
		}
	}
	if d > MaxWindow {
		return 0, fmt.Errorf("%w: %s exceeds %s", ErrDurationTooLong, d, MaxWindow)
	}
	return d, nil
}

// Window is a half-open [Start, End) time range in HST.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowEnding returns the window of length d ending at end, in HST.
func WindowEnding(end time.Time, d time.Duration) Window {
	end = end.In(HST)
	return Window{Start: end.Add(-d), End: end}
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Validate checks ordering and the MaxWindow limit.
func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return ErrInvalidWindow
	}
	if w.Duration() > MaxWindow {
		return fmt.Errorf("%w: %s exceeds %s", ErrDurationTooLong, w.Duration(), MaxWindow)
	}
	return nil
}

// FormatAPITime renders t in HST using APITimeLayout.
func FormatAPITime(t time.Time) string {
	return t.In(HST).Format(APITimeLayout)
}
