package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
	"latitude": 52.52,
	"longitude": 13.41,
	"elevation": 38,
	"timezone": "GMT",
	"utc_offset_seconds": 0,
	"hourly_units": {"time": "iso8601", "temperature_2m": "°C"},
	"hourly": {
		"time": ["2024-03-01T02:00", "2024-03-01T00:00", "not a time", "2024-03-01T01:00"],
		"Temperature_2m": [3.0, 1.0, 9.9, 2.0],
		"precipitation": [0.0, 0.1, null, 0.3],
		"weather_code": [1, 2, 3, 4]
	}
}`

func TestNormalize(t *testing.T) {
	loadedAt := time.Date(2024, time.March, 2, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(loadedAt))
	t.Cleanup(func() { SetClock(nil) })

	table, err := Normalize([]byte(samplePayload))
	require.NoError(t, err)
	require.Len(t, table.Rows, 4)

	t.Run("sorted ascending with missing timestamps last", func(t *testing.T) {
		for i, hour := range []int{0, 1, 2} {
			require.True(t, table.Rows[i].Time.Valid)
			assert.Equal(t, time.Date(2024, time.March, 1, hour, 0, 0, 0, time.UTC), table.Rows[i].Time.Time)
		}
		assert.False(t, table.Rows[3].Time.Valid)
	})

	t.Run("values follow their timestamps", func(t *testing.T) {
		assert.Equal(t, ptr(1.0), table.Rows[0].Temperature)
		assert.Equal(t, ptr(0.1), table.Rows[0].Precipitation)
		assert.Equal(t, ptr(2.0), table.Rows[1].Temperature)
		assert.Equal(t, ptr(3.0), table.Rows[2].Temperature)
		assert.Equal(t, ptr(9.9), table.Rows[3].Temperature)
		assert.Nil(t, table.Rows[3].Precipitation)
	})

	t.Run("absent measurements are missing", func(t *testing.T) {
		for _, row := range table.Rows {
			assert.Nil(t, row.Humidity)
			assert.Nil(t, row.WindSpeed)
		}
	})

	t.Run("provenance", func(t *testing.T) {
		assert.Equal(t, loadedAt, table.LoadedAt)
	})

	t.Run("envelope metadata", func(t *testing.T) {
		assert.InEpsilon(t, 52.52, table.Source.Latitude, 1e-9)
		assert.InEpsilon(t, 13.41, table.Source.Longitude, 1e-9)
		assert.InEpsilon(t, 38.0, table.Source.Elevation, 1e-9)
		assert.Equal(t, "GMT", table.Source.Timezone)
		assert.Equal(t, 0, table.Source.UTCOffsetSeconds)
	})
}

func TestNormalize_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"invalid json", `{"hourly":`, ""},
		{"missing hourly section", `{"daily": {"time": []}}`, "hourly"},
		{"hourly not an object", `{"hourly": [1, 2]}`, "hourly"},
		{"missing time field", `{"hourly": {"temperature_2m": [1]}}`, "time"},
		{"field shorter than time", `{"hourly": {"time": ["2024-03-01T00:00", "2024-03-01T01:00"], "temperature_2m": [1]}}`, "temperature_2m"},
		{"field longer than time", `{"hourly": {"time": ["2024-03-01T00:00"], "precipitation": [1, 2]}}`, "precipitation"},
		{"field not a sequence", `{"hourly": {"time": ["2024-03-01T00:00"], "precipitation": 0.5}}`, "precipitation"},
		{"null field", `{"hourly": {"time": ["2024-03-01T00:00"], "precipitation": null}}`, "precipitation"},
		{"non-numeric measurement", `{"hourly": {"time": ["2024-03-01T00:00"], "cloud_cover": ["cloudy"]}}`, "cloud_cover"},
		{"keys collide after lowercasing", `{"hourly": {"time": ["2024-03-01T00:00"], "Precipitation": [1], "precipitation": [1]}}`, "precipitation"},
		{"unknown field misaligned", `{"hourly": {"time": ["2024-03-01T00:00"], "weather_code": []}}`, "weather_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Normalize([]byte(tt.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchema)

			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.field, schemaErr.Field)
			assert.Empty(t, table.Rows, "no partial output on schema error")
		})
	}
}

func TestNormalize_BadEnvelopeMetadataIsIgnored(t *testing.T) {
	payload := `{
		"latitude": "north",
		"longitude": 13.41,
		"timezone": "GMT",
		"hourly": {"time": ["2024-03-01T00:00", "2024-03-01T01:00"], "precipitation": [0.0, 0.4]}
	}`

	table, err := Normalize([]byte(payload))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, ptr(0.4), table.Rows[1].Precipitation)
	assert.Equal(t, SourceInfo{}, table.Source, "metadata is dropped as a whole")
}

func TestNormalize_MismatchReportsFirstFieldInPayloadOrder(t *testing.T) {
	// Both fields are misaligned; the one declared first must be named.
	first := `{"hourly": {"time": ["2024-03-01T00:00", "2024-03-01T01:00"], "wind_speed_10m": [1], "cloud_cover": [1, 2, 3]}}`
	second := `{"hourly": {"time": ["2024-03-01T00:00", "2024-03-01T01:00"], "cloud_cover": [1, 2, 3], "wind_speed_10m": [1]}}`

	for payload, want := range map[string]string{first: "wind_speed_10m", second: "cloud_cover"} {
		for range 5 {
			_, err := Normalize([]byte(payload))
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, want, schemaErr.Field)
		}
	}
}

func TestNormalize_TimeFieldCaseInsensitive(t *testing.T) {
	table, err := Normalize([]byte(`{"hourly": {"TIME": ["2024-03-01T00:00Z"], "PRECIPITATION": [0.4]}}`))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.True(t, table.Rows[0].Time.Valid)
	assert.Equal(t, ptr(0.4), table.Rows[0].Precipitation)
}

func TestNormalize_EmptySeries(t *testing.T) {
	table, err := Normalize([]byte(`{"hourly": {"time": [], "precipitation": []}}`))
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
}

func TestNormalize_NonStringTimestampsAreMissing(t *testing.T) {
	table, err := Normalize([]byte(`{"hourly": {"time": [null, 17, "2024-03-01T00:00"], "precipitation": [1, 2, 3]}}`))
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	assert.True(t, table.Rows[0].Time.Valid)
	assert.Equal(t, ptr(3.0), table.Rows[0].Precipitation)
	assert.False(t, table.Rows[1].Time.Valid)
	assert.False(t, table.Rows[2].Time.Valid)
	// Stable: missing timestamps keep their payload order.
	assert.Equal(t, ptr(1.0), table.Rows[1].Precipitation)
	assert.Equal(t, ptr(2.0), table.Rows[2].Precipitation)
}
