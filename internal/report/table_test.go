package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestTable_Render(t *testing.T) {
	tbl := Table{
		Header: []string{"city", "mm"},
		Rows: [][]string{
			{"東京", "0.3"},
			{"Berlin"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, tbl.Render(&buf))

	want := "" +
		"| city   | mm  |\n" +
		"| ------ | --- |\n" +
		"| 東京   | 0.3 |\n" +
		"| Berlin |     |\n"
	assert.Equal(t, want, buf.String())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	for _, l := range lines {
		assert.Equal(t, runewidth.StringWidth(lines[0]), runewidth.StringWidth(l), "row %q misaligned", l)
	}
}

func TestSilver(t *testing.T) {
	loaded := time.Date(2024, time.March, 2, 6, 0, 0, 0, time.UTC)
	table := domain.NormalizedTable{
		LoadedAt: loaded,
		Rows: []domain.Observation{
			{Time: domain.ValidTime(time.Date(2024, time.March, 1, 1, 0, 0, 0, time.UTC)), Measurements: domain.Measurements{Temperature: ptr(4.5)}},
			{Measurements: domain.Measurements{Precipitation: ptr(0.25)}},
			{Time: domain.ValidTime(loaded)},
		},
	}

	got := Silver(table, 2)

	assert.Equal(t, "time", got.Header[0])
	assert.Equal(t, "silver_loaded_at", got.Header[len(got.Header)-1])
	assert.Len(t, got.Header, len(domain.MeasurementFields)+2)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "2024-03-01 01:00:00", got.Rows[0][0])
	assert.Equal(t, "4.5", got.Rows[0][1])
	assert.Equal(t, "", got.Rows[1][0], "missing timestamp renders empty")
	assert.Equal(t, "0.25", got.Rows[1][5])
	assert.Equal(t, "2024-03-02T06:00:00Z", got.Rows[1][len(got.Header)-1])
}

func TestMLReady(t *testing.T) {
	features := make([]*float64, len(domain.FeatureNames))
	features[0] = ptr(4)
	yes := 1
	table := domain.MLReadyTable{Rows: []domain.MLReadyRow{
		{Time: domain.ValidTime(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)), Features: features, RainNextHour: &yes},
	}}

	got := MLReady(table, 0)

	assert.Len(t, got.Header, 1+len(domain.FeatureNames)+len(domain.LabelNames))
	require.Len(t, got.Rows, 1)
	assert.Len(t, got.Rows[0], len(got.Header))
	assert.Equal(t, "4", got.Rows[0][1])
	assert.Equal(t, "1", got.Rows[0][len(got.Header)-2])
	assert.Equal(t, "", got.Rows[0][len(got.Header)-1])
}

func TestDaily(t *testing.T) {
	table := domain.DailyTable{Rows: []domain.DailyAggregate{{
		Date:           time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Hours:          24,
		TemperatureMin: ptr(1.5),
		Precipitation:  ptr(0),
	}}}

	got := Daily(table, 0)

	assert.Equal(t, domain.DailyColumns, got.Header)
	require.Len(t, got.Rows, 1)
	assert.Len(t, got.Rows[0], len(domain.DailyColumns))
	assert.Equal(t, []string{"2024-03-01", "24", "1.5", ""}, got.Rows[0][:4])
	assert.Equal(t, "0", got.Rows[0][10])
}

func TestRuns(t *testing.T) {
	started := time.Date(2024, time.March, 2, 6, 0, 0, 0, time.UTC)
	got := Runs([]domain.Run{
		{ID: "a", Status: domain.RunSucceeded, StartedAt: started, FinishedAt: started.Add(1500 * time.Millisecond), SilverRows: 24},
		{ID: "b", Status: domain.RunFailed, StartedAt: started, FinishedAt: started.Add(time.Second), Error: strings.Repeat("x", 100)},
		{ID: "c", Status: domain.RunRunning, StartedAt: started},
	})

	require.Len(t, got.Rows, 3)
	assert.Equal(t, "1.5s", got.Rows[0][8])
	assert.Equal(t, "24", got.Rows[0][4])
	assert.Equal(t, 60, runewidth.StringWidth(got.Rows[1][9]))
	assert.True(t, strings.HasSuffix(got.Rows[1][9], "..."))
	assert.Equal(t, "", got.Rows[2][8])
}
