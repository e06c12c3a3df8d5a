package domain

import (
	"sort"
	"strings"
	"time"
)

// SamplesPerHour is the number of 5-minute samples in a complete hour.
const SamplesPerHour = 12

// Aggregation selects how samples in an hour combine.
type Aggregation int

const (
	// AggregateMean averages instantaneous quantities (temperature, wind, ...).
	AggregateMean Aggregation = iota
	// AggregateSum totals cumulative quantities (rainfall).
	AggregateSum
)

func (a Aggregation) String() string {
	if a == AggregateSum {
		return "sum"
	}
	return "mean"
}

// AggregationFor returns the aggregation used for a variable ID.
// Rainfall totals (RF_*) are summed, everything else is averaged.
func AggregationFor(variable string) Aggregation {
	if strings.HasPrefix(variable, "RF_") || variable == "RF" {
		return AggregateSum
	}
	return AggregateMean
}

// AggregateHourly combines 5-minute samples into HST hour buckets stamped
// with the start of the hour. Buckets without exactly SamplesPerHour distinct
// timestamps are dropped; a repeated timestamp keeps its first value.
func AggregateHourly(s Series, agg Aggregation) Series {
	type bucket struct {
		sum   float64
		count int
		seen  map[int64]struct{}
	}
	buckets := make(map[time.Time]*bucket)
	for _, p := range s {
		hour := p.Timestamp.In(HST).Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &bucket{seen: make(map[int64]struct{}, SamplesPerHour)}
			buckets[hour] = b
		}
		key := p.Timestamp.UnixNano()
		if _, dup := b.seen[key]; dup {
			continue
		}
		b.seen[key] = struct{}{}
		b.sum += p.Value
		b.count++
	}

	out := make(Series, 0, len(buckets))
	for hour, b := range buckets {
		if b.count != SamplesPerHour {
			continue
		}
		v := b.sum
		if agg == AggregateMean {
			v = b.sum / float64(b.count)
		}
		out = append(out, Point{Timestamp: hour, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// AggregateHourlySet aggregates every series in the set using AggregationFor.
func AggregateHourlySet(set SeriesSet) SeriesSet {
	out := make(SeriesSet, len(set))
	for v, s := range set {
		out[v] = AggregateHourly(s, AggregationFor(v))
	}
	return out
}
