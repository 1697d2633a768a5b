package domain

// BuildHourly derives lag and change features for temperature, humidity and
// wind speed. The input is re-sorted by time before any offset is taken, so
// "k rows earlier" always means "k hours earlier in the sorted sequence".
//
// The first k rows have no lag-k value and the first row has no change; those
// stay nil. A lag of a missing value is missing, and a change with a missing
// operand is missing.
func BuildHourly(table NormalizedTable) HourlyTable {
	rows := sortedCopy(table.Rows, func(o Observation) NullTime { return o.Time })

	temp := column(rows, func(o Observation) *float64 { return o.Temperature })
	humidity := column(rows, func(o Observation) *float64 { return o.Humidity })
	wind := column(rows, func(o Observation) *float64 { return o.WindSpeed })

	out := make([]HourlyFeatures, len(rows))
	for i, row := range rows {
		out[i] = HourlyFeatures{
			Observation: row,
			Temperature: lagFeatures(temp, i),
			Humidity:    lagFeatures(humidity, i),
			WindSpeed:   lagFeatures(wind, i),
		}
	}
	return HourlyTable{LoadedAt: table.LoadedAt, Rows: out}
}

func column(rows []Observation, get func(Observation) *float64) []*float64 {
	out := make([]*float64, len(rows))
	for i, row := range rows {
		out[i] = get(row)
	}
	return out
}

// lagFeatures computes the lag and change values of series at index i.
func lagFeatures(series []*float64, i int) LagFeatures {
	var f LagFeatures
	for j, k := range Lags {
		f.Lag[j] = shifted(series, i-k)
	}
	if prev := shifted(series, i-1); prev != nil && series[i] != nil {
		d := *series[i] - *prev
		f.Change = &d
	}
	return f
}

// shifted returns a copy of series[idx], or nil when idx falls outside the
// series or the value is missing.
func shifted(series []*float64, idx int) *float64 {
	if idx < 0 || idx >= len(series) || series[idx] == nil {
		return nil
	}
	v := *series[idx]
	return &v
}
