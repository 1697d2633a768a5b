package domain

import (
	"slices"
	"time"
)

// DailyColumns lists the gold-daily column names in output order. Columns
// with a single statistic drop the statistic suffix.
var DailyColumns = []string{
	"date",
	"hours",
	"temperature_2m_min", "temperature_2m_max", "temperature_2m_mean",
	"relative_humidity_2m_min", "relative_humidity_2m_max", "relative_humidity_2m_mean",
	"wind_speed_10m_max", "wind_speed_10m_mean",
	"precipitation",
	"cloud_cover",
	"surface_pressure",
}

// BuildDaily summarizes the table per UTC calendar date. Rows without a
// timestamp are left out and dates without rows never appear. Missing values
// are skipped by every statistic; a statistic over no values is nil, except
// the precipitation sum which is zero.
func BuildDaily(table NormalizedTable) DailyTable {
	groups := make(map[time.Time]*dailyAccumulator)
	for _, row := range table.Rows {
		if !row.Time.Valid {
			continue
		}
		date := utcDate(coerceInstant(row.Time.Time))
		acc, ok := groups[date]
		if !ok {
			acc = &dailyAccumulator{}
			groups[date] = acc
		}
		acc.add(row.Measurements)
	}

	dates := make([]time.Time, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, time.Time.Compare)

	out := make([]DailyAggregate, 0, len(dates))
	for _, d := range dates {
		out = append(out, groups[d].aggregate(d))
	}
	return DailyTable{Rows: out}
}

type dailyAccumulator struct {
	hours           int
	temperature     stat
	humidity        stat
	windSpeed       stat
	precipitation   stat
	cloudCover      stat
	surfacePressure stat
}

func (a *dailyAccumulator) add(m Measurements) {
	a.hours++
	a.temperature.add(m.Temperature)
	a.humidity.add(m.Humidity)
	a.windSpeed.add(m.WindSpeed)
	a.precipitation.add(m.Precipitation)
	a.cloudCover.add(m.CloudCover)
	a.surfacePressure.add(m.SurfacePressure)
}

func (a *dailyAccumulator) aggregate(date time.Time) DailyAggregate {
	precip := a.precipitation.sum
	return DailyAggregate{
		Date:            date,
		Hours:           a.hours,
		TemperatureMin:  a.temperature.minimum(),
		TemperatureMax:  a.temperature.maximum(),
		TemperatureMean: a.temperature.mean(),
		HumidityMin:     a.humidity.minimum(),
		HumidityMax:     a.humidity.maximum(),
		HumidityMean:    a.humidity.mean(),
		WindSpeedMax:    a.windSpeed.maximum(),
		WindSpeedMean:   a.windSpeed.mean(),
		Precipitation:   &precip,
		CloudCover:      a.cloudCover.mean(),
		SurfacePressure: a.surfacePressure.mean(),
	}
}

// stat accumulates the non-missing values of one column.
type stat struct {
	n        int
	sum      float64
	min, max float64
}

func (s *stat) add(v *float64) {
	if v == nil {
		return
	}
	if s.n == 0 || *v < s.min {
		s.min = *v
	}
	if s.n == 0 || *v > s.max {
		s.max = *v
	}
	s.n++
	s.sum += *v
}

func (s *stat) minimum() *float64 { return s.when(s.min) }
func (s *stat) maximum() *float64 { return s.when(s.max) }
func (s *stat) mean() *float64    { return s.when(s.sum / float64(s.n)) }

func (s *stat) when(v float64) *float64 {
	if s.n == 0 {
		return nil
	}
	return &v
}
