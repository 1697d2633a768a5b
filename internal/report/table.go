// Package report renders tier snapshots and run history as markdown tables
// for terminal inspection.
package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/mattn/go-runewidth"
)

// minWidth keeps the separator row a valid markdown rule.
const minWidth = 3

// Table is a header plus string cells. Rows shorter than the header are
// padded with empty cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Render writes the table as an aligned markdown table. Column widths use
// display width so wide runes stay aligned.
func (t Table) Render(w io.Writer) error {
	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = max(minWidth, runewidth.StringWidth(h))
	}
	for _, row := range t.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	var sb strings.Builder
	writeRow(&sb, t.Header, widths)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	writeRow(&sb, sep, widths)
	for _, row := range t.Rows {
		writeRow(&sb, row, widths)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeRow(sb *strings.Builder, cells []string, widths []int) {
	sb.WriteString("|")
	for i, width := range widths {
		content := ""
		if i < len(cells) {
			content = cells[i]
		}
		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(content, width))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

// Silver tabulates the first limit rows of a silver table. A non-positive
// limit keeps every row.
func Silver(table domain.NormalizedTable, limit int) Table {
	header := append([]string{domain.FieldTime}, domain.MeasurementFields...)
	header = append(header, "silver_loaded_at")
	rows := head(table.Rows, limit)

	out := Table{Header: header, Rows: make([][]string, len(rows))}
	for i, row := range rows {
		cells := []string{formatTime(row.Time)}
		for _, name := range domain.MeasurementFields {
			v, _ := row.Value(name)
			cells = append(cells, formatFloat(v))
		}
		out.Rows[i] = append(cells, table.LoadedAt.UTC().Format(time.RFC3339))
	}
	return out
}

// MLReady tabulates the first limit rows of an ml-ready table.
func MLReady(table domain.MLReadyTable, limit int) Table {
	header := append([]string{domain.FieldTime}, domain.FeatureNames...)
	header = append(header, domain.LabelNames...)
	rows := head(table.Rows, limit)

	out := Table{Header: header, Rows: make([][]string, len(rows))}
	for i, row := range rows {
		cells := []string{formatTime(row.Time)}
		for _, v := range row.Features {
			cells = append(cells, formatFloat(v))
		}
		out.Rows[i] = append(cells, formatInt(row.RainNextHour), formatInt(row.RainNext3h))
	}
	return out
}

// Daily tabulates the first limit rows of a gold-daily table.
func Daily(table domain.DailyTable, limit int) Table {
	rows := head(table.Rows, limit)
	out := Table{Header: domain.DailyColumns, Rows: make([][]string, len(rows))}
	for i, d := range rows {
		out.Rows[i] = []string{
			d.Date.Format(time.DateOnly),
			strconv.Itoa(d.Hours),
			formatFloat(d.TemperatureMin),
			formatFloat(d.TemperatureMax),
			formatFloat(d.TemperatureMean),
			formatFloat(d.HumidityMin),
			formatFloat(d.HumidityMax),
			formatFloat(d.HumidityMean),
			formatFloat(d.WindSpeedMax),
			formatFloat(d.WindSpeedMean),
			formatFloat(d.Precipitation),
			formatFloat(d.CloudCover),
			formatFloat(d.SurfacePressure),
		}
	}
	return out
}

// Runs tabulates ledger entries.
func Runs(runs []domain.Run) Table {
	out := Table{
		Header: []string{"id", "status", "tag", "source", "silver", "hourly", "daily", "ml_ready", "duration", "error"},
		Rows:   make([][]string, len(runs)),
	}
	for i, r := range runs {
		duration := ""
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		out.Rows[i] = []string{
			r.ID, string(r.Status), r.Tag, r.Source,
			strconv.Itoa(r.SilverRows), strconv.Itoa(r.HourlyRows),
			strconv.Itoa(r.DailyRows), strconv.Itoa(r.MLReadyRows),
			duration, runewidth.Truncate(r.Error, 60, "..."),
		}
	}
	return out
}

func head[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func formatTime(t domain.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format(time.DateTime)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
