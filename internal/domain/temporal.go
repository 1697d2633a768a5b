package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// timestampLayouts are the ISO-8601 shapes accepted for the time field, tried
// in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

var errEmptyTimestamp = errors.New("empty value")

// parseTimestamp parses an ISO-8601 string into a UTC instant.
func parseTimestamp(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, &TemporalParseError{Value: value, Err: errEmptyTimestamp}
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, &TemporalParseError{Value: value, Err: lastErr}
}

// coerceInstant maps an instant onto the timezone-naive microsecond grid
// shared by hourly features and daily grouping.
func coerceInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// CoerceTimestamps returns a copy of the table with every present timestamp
// in UTC truncated to microseconds. Missing timestamps stay missing and the
// operation is idempotent.
func CoerceTimestamps(table NormalizedTable) NormalizedTable {
	out := table
	out.Rows = make([]Observation, len(table.Rows))
	for i, row := range table.Rows {
		if row.Time.Valid {
			row.Time = ValidTime(coerceInstant(row.Time.Time))
		}
		out.Rows[i] = row
	}
	return out
}

// utcDate returns midnight UTC of the calendar date containing t.
func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// compareTime orders timestamps ascending with missing values last.
func compareTime(a, b NullTime) int {
	switch {
	case a.Valid && b.Valid:
		return a.Time.Compare(b.Time)
	case a.Valid:
		return -1
	case b.Valid:
		return 1
	default:
		return 0
	}
}

// sortedCopy returns rows stably sorted by timestamp with missing timestamps
// last. The input slice is never reordered.
func sortedCopy[T any](rows []T, key func(T) NullTime) []T {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b T) int {
		return compareTime(key(a), key(b))
	})
	return out
}
