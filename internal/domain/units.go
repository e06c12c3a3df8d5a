package domain

import (
	"fmt"
	"strings"
)

// UnitSystem is the display unit preference.
type UnitSystem string

const (
	Metric   UnitSystem = "metric"
	Imperial UnitSystem = "imperial"
)

// ParseUnitSystem accepts "metric" or "imperial" (case-insensitive). Empty means metric.
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Metric):
		return Metric, nil
	case string(Imperial):
		return Imperial, nil
	default:
		return "", fmt.Errorf("invalid unit system %q (allowed: metric, imperial)", s)
	}
}

// Quantity is the physical kind of a variable, which decides its conversion.
type Quantity int

const (
	QuantityOther Quantity = iota
	QuantityTemperature
	QuantityPrecipitation
	QuantitySpeed
	QuantityPressure
)

// Conversion factors between API (SI) units and imperial units.
const (
	mmPerInch  = 25.4
	mphPerMS   = 2.23694
	kPaPerInHg = 3.38639
)

var quantityPrefixes = []struct {
	prefix   string
	quantity Quantity
}{
	{"Tair", QuantityTemperature},
	{"Tsoil", QuantityTemperature},
	{"Tsurf", QuantityTemperature},
	{"Tpanel", QuantityTemperature},
	{"Tdew", QuantityTemperature},
	{"RF", QuantityPrecipitation},
	{"WS", QuantitySpeed},
	{"P_", QuantityPressure},
}

// QuantityFor maps a variable ID to its quantity by prefix.
func QuantityFor(variable string) Quantity {
	for _, qp := range quantityPrefixes {
		if strings.HasPrefix(variable, qp.prefix) {
			return qp.quantity
		}
	}
	return QuantityOther
}

func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

func MillimetersToInches(mm float64) float64 { return mm / mmPerInch }

func InchesToMillimeters(in float64) float64 { return in * mmPerInch }

func MetersPerSecondToMPH(ms float64) float64 { return ms * mphPerMS }

func MPHToMetersPerSecond(mph float64) float64 { return mph / mphPerMS }

func KilopascalsToInHg(kpa float64) float64 { return kpa / kPaPerInHg }

func InHgToKilopascals(inHg float64) float64 { return inHg * kPaPerInHg }

// Convert converts an API-native (SI) value of quantity q into the target system.
func Convert(q Quantity, v float64, to UnitSystem) float64 {
	if to != Imperial {
		return v
	}
	switch q {
	case QuantityTemperature:
		return CelsiusToFahrenheit(v)
	case QuantityPrecipitation:
		return MillimetersToInches(v)
	case QuantitySpeed:
		return MetersPerSecondToMPH(v)
	case QuantityPressure:
		return KilopascalsToInHg(v)
	default:
		return v
	}
}

// UnitLabel returns the display unit for a quantity in a system.
func UnitLabel(q Quantity, sys UnitSystem) string {
	imperial := sys == Imperial
	switch q {
	case QuantityTemperature:
		if imperial {
			return "°F"
		}
		return "°C"
	case QuantityPrecipitation:
		if imperial {
			return "in"
		}
		return "mm"
	case QuantitySpeed:
		if imperial {
			return "mph"
		}
		return "m/s"
	case QuantityPressure:
		if imperial {
			return "inHg"
		}
		return "kPa"
	default:
		return ""
	}
}

// ConvertSeriesSet returns a copy of set with every value converted to sys.
func ConvertSeriesSet(set SeriesSet, sys UnitSystem) SeriesSet {
	out := make(SeriesSet, len(set))
	for v, s := range set {
		q := QuantityFor(v)
		conv := make(Series, len(s))
		for i, p := range s {
			conv[i] = Point{Timestamp: p.Timestamp, Value: Convert(q, p.Value, sys)}
		}
		out[v] = conv
	}
	return out
}
