package domain

import "time"

// Canonical lowercase field names of the hourly section.
const (
	FieldTime                     = "time"
	FieldTemperature              = "temperature_2m"
	FieldHumidity                 = "relative_humidity_2m"
	FieldDewPoint                 = "dew_point_2m"
	FieldPrecipitationProbability = "precipitation_probability"
	FieldPrecipitation            = "precipitation"
	FieldCloudCover               = "cloud_cover"
	FieldSurfacePressure          = "surface_pressure"
	FieldWindSpeed                = "wind_speed_10m"
	FieldWindGusts                = "wind_gusts_10m"
	FieldWindDirection            = "wind_direction_10m"
)

// MeasurementFields lists the measurement columns carried by the silver tier,
// in the order they appear in feature vectors.
var MeasurementFields = []string{
	FieldTemperature,
	FieldHumidity,
	FieldDewPoint,
	FieldPrecipitationProbability,
	FieldPrecipitation,
	FieldCloudCover,
	FieldSurfacePressure,
	FieldWindSpeed,
	FieldWindGusts,
	FieldWindDirection,
}

// Tier names a stage of data refinement. The value doubles as the snapshot
// directory name in the persistence layer.
type Tier string

const (
	TierBronze     Tier = "bronze"
	TierSilver     Tier = "silver"
	TierGoldHourly Tier = "gold-hourly"
	TierGoldDaily  Tier = "gold-daily"
	TierMLReady    Tier = "ml-ready"
)

// NullTime is an instant that may be missing. Timestamps that fail to parse
// become the zero NullTime rather than a sentinel instant.
type NullTime struct {
	Time  time.Time
	Valid bool
}

// ValidTime wraps t as a present timestamp.
func ValidTime(t time.Time) NullTime {
	return NullTime{Time: t, Valid: true}
}

// Measurements holds one hour of observed values. A nil field means the
// source reported no value for that hour.
type Measurements struct {
	Temperature              *float64 `json:"temperature_2m"`
	Humidity                 *float64 `json:"relative_humidity_2m"`
	DewPoint                 *float64 `json:"dew_point_2m"`
	PrecipitationProbability *float64 `json:"precipitation_probability"`
	Precipitation            *float64 `json:"precipitation"`
	CloudCover               *float64 `json:"cloud_cover"`
	SurfacePressure          *float64 `json:"surface_pressure"`
	WindSpeed                *float64 `json:"wind_speed_10m"`
	WindGusts                *float64 `json:"wind_gusts_10m"`
	WindDirection            *float64 `json:"wind_direction_10m"`
}

// field returns a pointer to the measurement slot for a canonical field name,
// or nil when the name is not a measurement.
func (m *Measurements) field(name string) **float64 {
	switch name {
	case FieldTemperature:
		return &m.Temperature
	case FieldHumidity:
		return &m.Humidity
	case FieldDewPoint:
		return &m.DewPoint
	case FieldPrecipitationProbability:
		return &m.PrecipitationProbability
	case FieldPrecipitation:
		return &m.Precipitation
	case FieldCloudCover:
		return &m.CloudCover
	case FieldSurfacePressure:
		return &m.SurfacePressure
	case FieldWindSpeed:
		return &m.WindSpeed
	case FieldWindGusts:
		return &m.WindGusts
	case FieldWindDirection:
		return &m.WindDirection
	default:
		return nil
	}
}

// Value returns the measurement for a canonical field name.
func (m Measurements) Value(name string) (*float64, bool) {
	slot := m.field(name)
	if slot == nil {
		return nil, false
	}
	return *slot, true
}

// Observation is one row of the silver tier.
type Observation struct {
	Time NullTime
	Measurements
}

// SourceInfo carries the envelope metadata of a raw payload.
type SourceInfo struct {
	Latitude         float64 `mapstructure:"latitude"`
	Longitude        float64 `mapstructure:"longitude"`
	Elevation        float64 `mapstructure:"elevation"`
	Timezone         string  `mapstructure:"timezone"`
	UTCOffsetSeconds int     `mapstructure:"utc_offset_seconds"`
}

// NormalizedTable is the silver tier: observations sorted by time ascending
// with missing timestamps last. LoadedAt is provenance, not a feature.
type NormalizedTable struct {
	Source   SourceInfo
	LoadedAt time.Time
	Rows     []Observation
}

// Lags lists the lag offsets, in hours, derived for each base measurement.
var Lags = [...]int{1, 2, 3}

// LagFeatures holds lag and single-step change values for one base measurement.
// Lag[k-1] is the value k rows earlier.
type LagFeatures struct {
	Lag    [len(Lags)]*float64
	Change *float64
}

// HourlyFeatures is an observation augmented with lag and change features.
type HourlyFeatures struct {
	Observation
	Temperature LagFeatures
	Humidity    LagFeatures
	WindSpeed   LagFeatures
}

// HourlyTable is the gold-hourly tier.
type HourlyTable struct {
	LoadedAt time.Time
	Rows     []HourlyFeatures
}

// DailyAggregate summarizes all hourly rows of one UTC calendar date.
type DailyAggregate struct {
	Date            time.Time
	Hours           int
	TemperatureMin  *float64
	TemperatureMax  *float64
	TemperatureMean *float64
	HumidityMin     *float64
	HumidityMax     *float64
	HumidityMean    *float64
	WindSpeedMax    *float64
	WindSpeedMean   *float64
	Precipitation   *float64
	CloudCover      *float64
	SurfacePressure *float64
}

// DailyTable is the gold-daily tier, ordered by date ascending.
type DailyTable struct {
	Rows []DailyAggregate
}

// LabeledRow is an hourly feature row with forward-looking rain targets.
// A nil label means the future needed to compute it is not in the table.
type LabeledRow struct {
	HourlyFeatures
	RainNextHour *int
	RainNext3h   *int
}

// LabeledTable is the terminal artifact of the transformation chain.
type LabeledTable struct {
	LoadedAt time.Time
	Rows     []LabeledRow
}
