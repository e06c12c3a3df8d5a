// Package domain models Hawaiʻi Mesonet station metadata and measurements.
//
// # Data Source
//
// Stations and measurements come from the Mesonet REST API operated by the
// Hawaiʻi Climate Data Portal. Station metadata is also mirrored as a static
// CSV file. Every request is a bearer-token authenticated GET; the API
// answers with flat JSON arrays.
//
// # Mesonet Data Conventions
//
// Station IDs:
//
//	Numeric text, zero padded, e.g. "0115" (Piʻiholo). IDs are compared as
//	strings; "115" and "0115" are different stations.
//
// Measurement rows:
//
//	{"station_id":"0115","variable":"Tair_1_Avg","value":"21.4","flag":0,
//	 "timestamp":"2024-04-26T15:10:00-10:00"}
//
//	Values arrive as numbers or numeric strings; null or unparseable values
//	mean "no reading" and are skipped when building series. Flag 0 is a good
//	reading, anything else marks a quality issue.
//
// Variable IDs:
//
//	<quantity>_<sensor>_<statistic>, e.g. Tair_1_Avg (air temperature, °C),
//	RF_1_Tot300s (rainfall total over 300 s, mm), WS_1_Avg (wind speed, m/s),
//	P_1 (barometric pressure, kPa), BattVolt (logger battery, V).
//	The API reports SI units; imperial values are derived here.
//
// Sampling:
//
//	Loggers report every 5 minutes. An hour is complete when it holds 12
//	samples; hourly aggregates only use complete hours. Rainfall is summed,
//	instantaneous quantities are averaged.
//
// Time:
//
//	All windows are computed in Hawaiʻi Standard Time (HST, fixed UTC-10, no
//	daylight saving) and sent to the API with an explicit -10:00 offset.
package domain
