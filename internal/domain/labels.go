package domain

// RainThreshold is the precipitation amount above which an hour counts as
// rainy for labeling.
const RainThreshold = 0.2

// rainWindow is the number of future hours covered by RainNext3h.
const rainWindow = 3

// AddLabels appends forward-looking rain targets to an hourly table. Rows are
// re-sorted by time first because both labels read "the next rows".
//
// RainNextHour[i] is 1 when precipitation[i+1] exceeds RainThreshold.
// RainNext3h[i] is 1 when the maximum of precipitation[i+1..i+3], truncated
// at the end of the table, exceeds it. Missing precipitation values are
// skipped inside the window. A label with no future value to look at is nil,
// never 0. Neither label reads precipitation at or before row i.
func AddLabels(table HourlyTable) LabeledTable {
	rows := sortedCopy(table.Rows, func(h HourlyFeatures) NullTime { return h.Time })

	precip := make([]*float64, len(rows))
	for i, row := range rows {
		precip[i] = row.Precipitation
	}

	out := make([]LabeledRow, len(rows))
	for i, row := range rows {
		out[i] = LabeledRow{
			HourlyFeatures: row,
			RainNextHour:   exceedsThreshold(forwardMax(precip, i, 1)),
			RainNext3h:     exceedsThreshold(forwardMax(precip, i, rainWindow)),
		}
	}
	return LabeledTable{LoadedAt: table.LoadedAt, Rows: out}
}

// forwardMax returns the largest present value among series[i+1..i+width],
// truncated at the end of the series, or nil when there is none.
func forwardMax(series []*float64, i, width int) *float64 {
	var best *float64
	for j := i + 1; j <= i+width && j < len(series); j++ {
		if v := series[j]; v != nil && (best == nil || *v > *best) {
			best = v
		}
	}
	return best
}

func exceedsThreshold(v *float64) *int {
	if v == nil {
		return nil
	}
	label := 0
	if *v > RainThreshold {
		label = 1
	}
	return &label
}
