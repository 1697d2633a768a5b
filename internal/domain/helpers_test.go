package domain

import (
	"time"
)

var testStart = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

// hourlyTable builds a silver table with one row per hour starting at
// testStart, taking temperature and precipitation from the given series.
// A nil series leaves the column missing.
func hourlyTable(temps, precip []*float64) NormalizedTable {
	n := max(len(temps), len(precip))
	rows := make([]Observation, n)
	for i := range rows {
		rows[i].Time = ValidTime(testStart.Add(time.Duration(i) * time.Hour))
		if i < len(temps) {
			rows[i].Temperature = temps[i]
		}
		if i < len(precip) {
			rows[i].Precipitation = precip[i]
		}
	}
	return NormalizedTable{LoadedAt: testStart, Rows: rows}
}

func floats(vs ...float64) []*float64 {
	out := make([]*float64, len(vs))
	for i := range vs {
		out[i] = ptr(vs[i])
	}
	return out
}

func labelValues(labels []*int) []any {
	out := make([]any, len(labels))
	for i, l := range labels {
		if l == nil {
			out[i] = nil
			continue
		}
		out[i] = *l
	}
	return out
}
