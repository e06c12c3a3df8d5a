package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCelsiusFahrenheitRoundTrip(t *testing.T) {
	for _, c := range []float64{-40, -12.3, 0, 0.1, 21.4, 37, 100, 1e-7} {
		f := CelsiusToFahrenheit(c)
		assert.InDelta(t, c, FahrenheitToCelsius(f), 1e-9, "round trip of %v", c)
	}
	assert.Equal(t, 32.0, CelsiusToFahrenheit(0))
	assert.Equal(t, 212.0, CelsiusToFahrenheit(100))
	assert.Equal(t, -40.0, CelsiusToFahrenheit(-40))
}

func TestLinearRoundTrips(t *testing.T) {
	for _, v := range []float64{0, 0.1, 1, 25.4, 101.3} {
		assert.InDelta(t, v, InchesToMillimeters(MillimetersToInches(v)), 1e-9)
		assert.InDelta(t, v, MPHToMetersPerSecond(MetersPerSecondToMPH(v)), 1e-9)
		assert.InDelta(t, v, InHgToKilopascals(KilopascalsToInHg(v)), 1e-9)
	}
	assert.InDelta(t, 1.0, MillimetersToInches(25.4), 1e-12)
}

func TestQuantityFor(t *testing.T) {
	tests := []struct {
		variable string
		want     Quantity
	}{
		{"Tair_1_Avg", QuantityTemperature},
		{"Tsoil_1_Avg", QuantityTemperature},
		{"RF_1_Tot300s", QuantityPrecipitation},
		{"WS_1_Avg", QuantitySpeed},
		{"P_1", QuantityPressure},
		{"RH_1_Avg", QuantityOther},
		{"BattVolt", QuantityOther},
	}
	for _, tt := range tests {
		t.Run(tt.variable, func(t *testing.T) {
			assert.Equal(t, tt.want, QuantityFor(tt.variable))
		})
	}
}

func TestConvert(t *testing.T) {
	assert.Equal(t, 21.4, Convert(QuantityTemperature, 21.4, Metric))
	assert.InDelta(t, 70.52, Convert(QuantityTemperature, 21.4, Imperial), 1e-9)
	assert.InDelta(t, 1.0, Convert(QuantityPrecipitation, 25.4, Imperial), 1e-9)
	assert.Equal(t, 55.0, Convert(QuantityOther, 55, Imperial))
}

func TestConvertSeriesSet(t *testing.T) {
	set := SeriesSet{
		testTairVar: {{Timestamp: testBase, Value: 100}},
		"RH_1_Avg":  {{Timestamp: testBase, Value: 80}},
	}

	out := ConvertSeriesSet(set, Imperial)

	assert.InDelta(t, 212.0, out[testTairVar][0].Value, 1e-9)
	assert.Equal(t, 80.0, out["RH_1_Avg"][0].Value)
	assert.Equal(t, 100.0, set[testTairVar][0].Value, "input must not be modified")
}

func TestParseUnitSystem(t *testing.T) {
	u, err := ParseUnitSystem("")
	require.NoError(t, err)
	assert.Equal(t, Metric, u)

	u, err = ParseUnitSystem("Imperial")
	require.NoError(t, err)
	assert.Equal(t, Imperial, u)

	_, err = ParseUnitSystem("kelvin")
	require.Error(t, err)
}

func TestUnitLabel(t *testing.T) {
	assert.Equal(t, "°F", UnitLabel(QuantityTemperature, Imperial))
	assert.Equal(t, "mm", UnitLabel(QuantityPrecipitation, Metric))
	assert.Empty(t, UnitLabel(QuantityOther, Imperial))
}
