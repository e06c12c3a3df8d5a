package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeStation() Station {
	return Station{ID: testStationID, Name: "Piiholo", Status: StationActive}
}

func TestEvaluateStationHealth(t *testing.T) {
	now := testBase.Add(time.Hour)

	t.Run("healthy", func(t *testing.T) {
		rows := []Measurement{
			row(testTairVar, 55, Float(21)),
			row(VarBatteryVolts, 55, Float(12.8)),
		}
		h := EvaluateStationHealth(now, activeStation(), rows, DefaultHealthThresholds)

		assert.Equal(t, HealthOK, h.Status)
		assert.Empty(t, h.Issues)
		require.NotNil(t, h.LatencyMinutes)
		assert.InDelta(t, 5.0, *h.LatencyMinutes, 1e-9)
		require.NotNil(t, h.BatteryVolts)
		assert.Equal(t, 12.8, *h.BatteryVolts)
	})

	t.Run("delayed is warning", func(t *testing.T) {
		rows := []Measurement{row(testTairVar, 30, Float(21))}
		h := EvaluateStationHealth(now, activeStation(), rows, DefaultHealthThresholds)

		assert.Equal(t, HealthWarning, h.Status)
		require.Len(t, h.Issues, 1)
		assert.Contains(t, h.Issues[0], "delayed")
	})

	t.Run("stale is critical", func(t *testing.T) {
		rows := []Measurement{row(testTairVar, -120, Float(21))}
		h := EvaluateStationHealth(now, activeStation(), rows, DefaultHealthThresholds)

		assert.Equal(t, HealthCritical, h.Status)
		assert.Contains(t, h.Issues[0], "offline")
	})

	t.Run("no rows is critical", func(t *testing.T) {
		h := EvaluateStationHealth(now, activeStation(), nil, DefaultHealthThresholds)

		assert.Equal(t, HealthCritical, h.Status)
		assert.Nil(t, h.LastObservation)
	})

	t.Run("low battery", func(t *testing.T) {
		rows := []Measurement{row(VarBatteryVolts, 55, Float(11.8))}
		h := EvaluateStationHealth(now, activeStation(), rows, DefaultHealthThresholds)
		assert.Equal(t, HealthWarning, h.Status)

		rows = []Measurement{row(VarBatteryVolts, 55, Float(11.2))}
		h = EvaluateStationHealth(now, activeStation(), rows, DefaultHealthThresholds)
		assert.Equal(t, HealthCritical, h.Status)
		assert.Contains(t, h.Issues[0], "battery critical")
	})

	t.Run("hot panel and flags", func(t *testing.T) {
		flagged := row(testTairVar, 55, Float(21))
		flagged.Flag = 3
		rows := []Measurement{row(VarPanelTemp, 55, Float(65)), flagged}
		h := EvaluateStationHealth(now, activeStation(), rows, DefaultHealthThresholds)

		assert.Equal(t, HealthWarning, h.Status)
		assert.Equal(t, []string{"logger panel hot: 65.0 °C", "Tair_1_Avg flagged (3)"}, h.Issues)
	})

	t.Run("inactive station not evaluated", func(t *testing.T) {
		st := activeStation()
		st.Status = StationPlanned
		h := EvaluateStationHealth(now, st, nil, DefaultHealthThresholds)

		assert.Equal(t, HealthInactive, h.Status)
		assert.Empty(t, h.Issues)
	})
}

func TestBuildHealthReport(t *testing.T) {
	now := testBase.Add(time.Hour)
	other := Station{ID: "0002", Name: "Other", Status: StationActive}
	rows := []Measurement{row(testTairVar, 55, Float(21))}

	report := BuildHealthReport(now, []Station{activeStation(), other}, rows, DefaultHealthThresholds)

	require.Len(t, report.Stations, 2)
	assert.Equal(t, "0002", report.Stations[0].StationID)
	assert.Equal(t, HealthCritical, report.Stations[0].Status)
	assert.Equal(t, HealthOK, report.Stations[1].Status)
	assert.True(t, report.GeneratedAt.Equal(now))
}

func TestHealthReportSameGrades(t *testing.T) {
	rows := []Measurement{row(testTairVar, 55, Float(21))}
	stations := []Station{activeStation()}

	a := BuildHealthReport(testBase.Add(time.Hour), stations, rows, DefaultHealthThresholds)
	b := BuildHealthReport(testBase.Add(time.Hour+time.Minute), stations, rows, DefaultHealthThresholds)
	assert.True(t, a.SameGrades(b), "latency drift alone is not a change")

	c := BuildHealthReport(testBase.Add(2*time.Hour), stations, rows, DefaultHealthThresholds)
	assert.False(t, a.SameGrades(c))
}
