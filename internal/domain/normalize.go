package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// hourlySection is the payload key holding the hourly time series.
const hourlySection = "hourly"

// rawField is one column of the hourly section in payload order.
type rawField struct {
	key    string // as sent by the source
	name   string // lowercase canonical name
	values []json.RawMessage
}

// Normalize validates a raw Open-Meteo style payload and reshapes its hourly
// section into a silver table sorted by time, missing timestamps last.
//
// Every hourly field must be an array as long as the time array; fields are
// checked in payload order and the first misaligned one is reported. Nothing
// is returned on error.
func Normalize(payload []byte) (NormalizedTable, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return NormalizedTable{}, &SchemaError{Reason: fmt.Sprintf("decode payload: %v", err)}
	}

	section, ok := envelope[hourlySection]
	if !ok {
		return NormalizedTable{}, &SchemaError{Field: hourlySection, Reason: "section missing"}
	}

	fields, err := decodeHourlyFields(section)
	if err != nil {
		return NormalizedTable{}, err
	}

	times := findField(fields, FieldTime)
	if times == nil {
		return NormalizedTable{}, &SchemaError{Field: FieldTime, Reason: "field missing from hourly section"}
	}
	for _, f := range fields {
		if len(f.values) != len(times.values) {
			return NormalizedTable{}, &SchemaError{
				Field:  f.key,
				Reason: fmt.Sprintf("has %d values, time has %d", len(f.values), len(times.values)),
			}
		}
	}

	rows := make([]Observation, len(times.values))
	for i, raw := range times.values {
		rows[i].Time = decodeTimestamp(raw)
	}
	for _, f := range fields {
		if err := fillMeasurement(rows, f); err != nil {
			return NormalizedTable{}, err
		}
	}

	source := decodeSourceInfo(envelope)

	return NormalizedTable{
		Source:   source,
		LoadedAt: clock.Now().UTC(),
		Rows:     sortedCopy(rows, func(o Observation) NullTime { return o.Time }),
	}, nil
}

// decodeHourlyFields reads the hourly object token by token so the field
// order of the payload is kept.
func decodeHourlyFields(section json.RawMessage) ([]rawField, error) {
	dec := json.NewDecoder(bytes.NewReader(section))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, &SchemaError{Field: hourlySection, Reason: "section is not an object"}
	}

	var fields []rawField
	seen := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &SchemaError{Field: hourlySection, Reason: fmt.Sprintf("decode key: %v", err)}
		}
		key, _ := tok.(string)
		name := strings.ToLower(key)
		if prev, dup := seen[name]; dup {
			return nil, &SchemaError{Field: key, Reason: fmt.Sprintf("duplicates field %q after lowercasing", prev)}
		}
		seen[name] = key

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &SchemaError{Field: key, Reason: fmt.Sprintf("decode values: %v", err)}
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			return nil, &SchemaError{Field: key, Reason: "is not a sequence"}
		}
		var values []json.RawMessage
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, &SchemaError{Field: key, Reason: fmt.Sprintf("decode values: %v", err)}
		}
		fields = append(fields, rawField{key: key, name: name, values: values})
	}
	return fields, nil
}

func findField(fields []rawField, name string) *rawField {
	for i := range fields {
		if fields[i].name == name {
			return &fields[i]
		}
	}
	return nil
}

// decodeTimestamp is deliberately lenient: anything that is not a parseable
// ISO-8601 string becomes a missing timestamp.
func decodeTimestamp(raw json.RawMessage) NullTime {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return NullTime{}
	}
	t, err := parseTimestamp(s)
	if err != nil {
		return NullTime{}
	}
	return ValidTime(t)
}

// fillMeasurement copies one measurement column into rows. Fields outside
// the canonical measurement set are ignored.
func fillMeasurement(rows []Observation, f rawField) error {
	for i, raw := range f.values {
		slot := rows[i].field(f.name)
		if slot == nil {
			return nil
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return &SchemaError{Field: f.key, Reason: fmt.Sprintf("value at index %d is not numeric", i)}
		}
		*slot = &v
	}
	return nil
}

// decodeSourceInfo pulls location metadata from the payload envelope.
// Metadata is informational: if any of it fails to decode, all of it is left
// at zero values and the hourly data is still accepted.
func decodeSourceInfo(envelope map[string]json.RawMessage) SourceInfo {
	meta := make(map[string]any, len(envelope))
	for k, raw := range envelope {
		if k == hourlySection {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		meta[k] = v
	}

	var info SourceInfo
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &info,
	})
	if err != nil {
		return SourceInfo{}
	}
	if err := dec.Decode(meta); err != nil {
		return SourceInfo{}
	}
	return info
}
