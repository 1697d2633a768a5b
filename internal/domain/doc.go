// Package domain models hourly weather observations and the medallion
// transformations that turn them into a rain-prediction training set.
//
// # Data Source
//
// Raw payloads follow the Open-Meteo forecast/archive response shape: an
// envelope with location metadata and an "hourly" object mapping each field
// name to an array of values. The "time" array holds ISO-8601 strings, for
// example "2024-03-01T13:00" (no zone; read as UTC).
//
//	{"latitude": 52.52, "hourly": {"time": [...], "temperature_2m": [...], ...}}
//
// # Tiers
//
//	bronze       raw payload bytes, untouched
//	silver       [NormalizedTable]: typed rows sorted by time, provenance column
//	gold-hourly  [HourlyTable]: silver rows plus lag and change features
//	gold-daily   [DailyTable]: per-UTC-date statistics
//	ml-ready     [MLReadyTable]: features in [FeatureNames] order plus labels
//
// # Missing Data
//
// Missing values are nil pointers and missing timestamps are a zero [NullTime].
// Nothing is zero-filled or back-filled: a nil lag on the first rows tells the
// model the history is incomplete. Unparseable timestamps are the single
// lenient case; they become missing instead of failing the payload, sort last,
// and are excluded from daily grouping.
//
// # Labels
//
// Labels look forward only. For row i, RainNextHour reads precipitation[i+1]
// and RainNext3h reads precipitation[i+1..i+3] truncated at the table end;
// both compare against [RainThreshold]. Rows with no future value get a nil
// label, which must not be read as "no rain".
//
// # Errors
//
// A structurally invalid payload yields a [*SchemaError] and no table. Scoring
// inputs that lack an expected feature yield a [*FeatureMismatchError].
package domain
