package domain

import "fmt"

// LabelNames lists the supervised targets in ml-ready output order.
var LabelNames = []string{"rain_next_hour", "rain_next_3h"}

// featureGetters resolves each model feature from an hourly row. The order of
// this slice is the canonical feature order.
var featureGetters = buildFeatureGetters()

// FeatureNames is the ordered feature list of the ml-ready tier. The
// provenance column is deliberately absent.
var FeatureNames = func() []string {
	names := make([]string, len(featureGetters))
	for i, g := range featureGetters {
		names[i] = g.name
	}
	return names
}()

type featureGetter struct {
	name string
	get  func(HourlyFeatures) *float64
	set  func(*HourlyFeatures, *float64)
}

func buildFeatureGetters() []featureGetter {
	getters := make([]featureGetter, 0, len(MeasurementFields)+len(Lags)*3+3)
	for _, name := range MeasurementFields {
		getters = append(getters, featureGetter{
			name: name,
			get: func(h HourlyFeatures) *float64 {
				v, _ := h.Value(name)
				return v
			},
			set: func(h *HourlyFeatures, v *float64) { *h.field(name) = v },
		})
	}
	for j, k := range Lags {
		getters = append(getters,
			lagGetter(fmt.Sprintf("temp_lag_%dh", k), func(h *HourlyFeatures) **float64 { return &h.Temperature.Lag[j] }),
			lagGetter(fmt.Sprintf("humidity_lag_%dh", k), func(h *HourlyFeatures) **float64 { return &h.Humidity.Lag[j] }),
			lagGetter(fmt.Sprintf("wind_lag_%dh", k), func(h *HourlyFeatures) **float64 { return &h.WindSpeed.Lag[j] }),
		)
	}
	return append(getters,
		lagGetter("temp_change_1h", func(h *HourlyFeatures) **float64 { return &h.Temperature.Change }),
		lagGetter("humidity_change_1h", func(h *HourlyFeatures) **float64 { return &h.Humidity.Change }),
		lagGetter("wind_change_1h", func(h *HourlyFeatures) **float64 { return &h.WindSpeed.Change }),
	)
}

func lagGetter(name string, slot func(*HourlyFeatures) **float64) featureGetter {
	return featureGetter{
		name: name,
		get:  func(h HourlyFeatures) *float64 { return *slot(&h) },
		set:  func(h *HourlyFeatures, v *float64) { *slot(h) = v },
	}
}

// MLReadyRow is one training row: features in FeatureNames order plus labels.
type MLReadyRow struct {
	Time         NullTime
	Features     []*float64
	RainNextHour *int
	RainNext3h   *int
}

// FeatureMap returns the present features keyed by name. Missing values are
// left out so scoring reports them as a mismatch instead of guessing.
func (r MLReadyRow) FeatureMap() map[string]float64 {
	out := make(map[string]float64, len(r.Features))
	for i, v := range r.Features {
		if v != nil && i < len(FeatureNames) {
			out[FeatureNames[i]] = *v
		}
	}
	return out
}

// Labeled rebuilds the labeled row this row was projected from. Provenance
// is not part of the ml-ready contract and stays zero.
func (r MLReadyRow) Labeled() LabeledRow {
	var h HourlyFeatures
	h.Time = r.Time
	for i, g := range featureGetters {
		if i < len(r.Features) {
			g.set(&h, r.Features[i])
		}
	}
	return LabeledRow{HourlyFeatures: h, RainNextHour: r.RainNextHour, RainNext3h: r.RainNext3h}
}

// MLReadyTable is the ml-ready tier.
type MLReadyTable struct {
	Rows []MLReadyRow
}

// MLReady projects a labeled table onto the model feature contract, dropping
// the provenance column.
func MLReady(table LabeledTable) MLReadyTable {
	out := make([]MLReadyRow, len(table.Rows))
	for i, row := range table.Rows {
		features := make([]*float64, len(featureGetters))
		for j, g := range featureGetters {
			features[j] = g.get(row.HourlyFeatures)
		}
		out[i] = MLReadyRow{
			Time:         row.Time,
			Features:     features,
			RainNextHour: row.RainNextHour,
			RainNext3h:   row.RainNext3h,
		}
	}
	return MLReadyTable{Rows: out}
}

// SelectFeatures orders values by names. Every name must be present; the
// error lists all absent names in the requested order.
func SelectFeatures(values map[string]float64, names []string) ([]float64, error) {
	out := make([]float64, len(names))
	var missing []string
	for i, name := range names {
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[i] = v
	}
	if len(missing) > 0 {
		return nil, &FeatureMismatchError{Missing: missing}
	}
	return out, nil
}
