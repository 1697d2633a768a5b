package parquet

import (
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
)

// silverRecord is one row of a silver snapshot.
type silverRecord struct {
	Time                     *int64   `parquet:"name=time, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	Temperature              *float64 `parquet:"name=temperature_2m, type=DOUBLE, repetitiontype=OPTIONAL"`
	Humidity                 *float64 `parquet:"name=relative_humidity_2m, type=DOUBLE, repetitiontype=OPTIONAL"`
	DewPoint                 *float64 `parquet:"name=dew_point_2m, type=DOUBLE, repetitiontype=OPTIONAL"`
	PrecipitationProbability *float64 `parquet:"name=precipitation_probability, type=DOUBLE, repetitiontype=OPTIONAL"`
	Precipitation            *float64 `parquet:"name=precipitation, type=DOUBLE, repetitiontype=OPTIONAL"`
	CloudCover               *float64 `parquet:"name=cloud_cover, type=DOUBLE, repetitiontype=OPTIONAL"`
	SurfacePressure          *float64 `parquet:"name=surface_pressure, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindSpeed                *float64 `parquet:"name=wind_speed_10m, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindGusts                *float64 `parquet:"name=wind_gusts_10m, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindDirection            *float64 `parquet:"name=wind_direction_10m, type=DOUBLE, repetitiontype=OPTIONAL"`
	Latitude                 float64  `parquet:"name=latitude, type=DOUBLE"`
	Longitude                float64  `parquet:"name=longitude, type=DOUBLE"`
	Elevation                float64  `parquet:"name=elevation, type=DOUBLE"`
	Timezone                 string   `parquet:"name=timezone, type=BYTE_ARRAY, convertedtype=UTF8"`
	UTCOffsetSeconds         int32    `parquet:"name=utc_offset_seconds, type=INT32"`
	LoadedAt                 int64    `parquet:"name=silver_loaded_at, type=INT64, convertedtype=TIMESTAMP_MICROS"`
}

// mlReadyRecord is one row of an ml-ready snapshot. Feature columns follow
// domain.FeatureNames.
type mlReadyRecord struct {
	Time                     *int64   `parquet:"name=time, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	Temperature              *float64 `parquet:"name=temperature_2m, type=DOUBLE, repetitiontype=OPTIONAL"`
	Humidity                 *float64 `parquet:"name=relative_humidity_2m, type=DOUBLE, repetitiontype=OPTIONAL"`
	DewPoint                 *float64 `parquet:"name=dew_point_2m, type=DOUBLE, repetitiontype=OPTIONAL"`
	PrecipitationProbability *float64 `parquet:"name=precipitation_probability, type=DOUBLE, repetitiontype=OPTIONAL"`
	Precipitation            *float64 `parquet:"name=precipitation, type=DOUBLE, repetitiontype=OPTIONAL"`
	CloudCover               *float64 `parquet:"name=cloud_cover, type=DOUBLE, repetitiontype=OPTIONAL"`
	SurfacePressure          *float64 `parquet:"name=surface_pressure, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindSpeed                *float64 `parquet:"name=wind_speed_10m, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindGusts                *float64 `parquet:"name=wind_gusts_10m, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindDirection            *float64 `parquet:"name=wind_direction_10m, type=DOUBLE, repetitiontype=OPTIONAL"`
	TempLag1h                *float64 `parquet:"name=temp_lag_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityLag1h            *float64 `parquet:"name=humidity_lag_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindLag1h                *float64 `parquet:"name=wind_lag_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	TempLag2h                *float64 `parquet:"name=temp_lag_2h, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityLag2h            *float64 `parquet:"name=humidity_lag_2h, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindLag2h                *float64 `parquet:"name=wind_lag_2h, type=DOUBLE, repetitiontype=OPTIONAL"`
	TempLag3h                *float64 `parquet:"name=temp_lag_3h, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityLag3h            *float64 `parquet:"name=humidity_lag_3h, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindLag3h                *float64 `parquet:"name=wind_lag_3h, type=DOUBLE, repetitiontype=OPTIONAL"`
	TempChange1h             *float64 `parquet:"name=temp_change_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityChange1h         *float64 `parquet:"name=humidity_change_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindChange1h             *float64 `parquet:"name=wind_change_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	RainNextHour             *int32   `parquet:"name=rain_next_hour, type=INT32, repetitiontype=OPTIONAL"`
	RainNext3h               *int32   `parquet:"name=rain_next_3h, type=INT32, repetitiontype=OPTIONAL"`
}

// goldHourlyRecord is an ml-ready row plus the silver provenance column.
type goldHourlyRecord struct {
	Time                     *int64   `parquet:"name=time, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	Temperature              *float64 `parquet:"name=temperature_2m, type=DOUBLE, repetitiontype=OPTIONAL"`
	Humidity                 *float64 `parquet:"name=relative_humidity_2m, type=DOUBLE, repetitiontype=OPTIONAL"`
	DewPoint                 *float64 `parquet:"name=dew_point_2m, type=DOUBLE, repetitiontype=OPTIONAL"`
	PrecipitationProbability *float64 `parquet:"name=precipitation_probability, type=DOUBLE, repetitiontype=OPTIONAL"`
	Precipitation            *float64 `parquet:"name=precipitation, type=DOUBLE, repetitiontype=OPTIONAL"`
	CloudCover               *float64 `parquet:"name=cloud_cover, type=DOUBLE, repetitiontype=OPTIONAL"`
	SurfacePressure          *float64 `parquet:"name=surface_pressure, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindSpeed                *float64 `parquet:"name=wind_speed_10m, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindGusts                *float64 `parquet:"name=wind_gusts_10m, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindDirection            *float64 `parquet:"name=wind_direction_10m, type=DOUBLE, repetitiontype=OPTIONAL"`
	LoadedAt                 int64    `parquet:"name=silver_loaded_at, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	TempLag1h                *float64 `parquet:"name=temp_lag_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityLag1h            *float64 `parquet:"name=humidity_lag_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindLag1h                *float64 `parquet:"name=wind_lag_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	TempLag2h                *float64 `parquet:"name=temp_lag_2h, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityLag2h            *float64 `parquet:"name=humidity_lag_2h, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindLag2h                *float64 `parquet:"name=wind_lag_2h, type=DOUBLE, repetitiontype=OPTIONAL"`
	TempLag3h                *float64 `parquet:"name=temp_lag_3h, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityLag3h            *float64 `parquet:"name=humidity_lag_3h, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindLag3h                *float64 `parquet:"name=wind_lag_3h, type=DOUBLE, repetitiontype=OPTIONAL"`
	TempChange1h             *float64 `parquet:"name=temp_change_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityChange1h         *float64 `parquet:"name=humidity_change_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindChange1h             *float64 `parquet:"name=wind_change_1h, type=DOUBLE, repetitiontype=OPTIONAL"`
	RainNextHour             *int32   `parquet:"name=rain_next_hour, type=INT32, repetitiontype=OPTIONAL"`
	RainNext3h               *int32   `parquet:"name=rain_next_3h, type=INT32, repetitiontype=OPTIONAL"`
}

// dailyRecord is one row of a gold-daily snapshot. Column order follows
// domain.DailyColumns.
type dailyRecord struct {
	Date            int32    `parquet:"name=date, type=INT32, convertedtype=DATE"`
	Hours           int32    `parquet:"name=hours, type=INT32"`
	TemperatureMin  *float64 `parquet:"name=temperature_2m_min, type=DOUBLE, repetitiontype=OPTIONAL"`
	TemperatureMax  *float64 `parquet:"name=temperature_2m_max, type=DOUBLE, repetitiontype=OPTIONAL"`
	TemperatureMean *float64 `parquet:"name=temperature_2m_mean, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityMin     *float64 `parquet:"name=relative_humidity_2m_min, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityMax     *float64 `parquet:"name=relative_humidity_2m_max, type=DOUBLE, repetitiontype=OPTIONAL"`
	HumidityMean    *float64 `parquet:"name=relative_humidity_2m_mean, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindSpeedMax    *float64 `parquet:"name=wind_speed_10m_max, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindSpeedMean   *float64 `parquet:"name=wind_speed_10m_mean, type=DOUBLE, repetitiontype=OPTIONAL"`
	Precipitation   *float64 `parquet:"name=precipitation, type=DOUBLE, repetitiontype=OPTIONAL"`
	CloudCover      *float64 `parquet:"name=cloud_cover, type=DOUBLE, repetitiontype=OPTIONAL"`
	SurfacePressure *float64 `parquet:"name=surface_pressure, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// measurementSlots lists the measurement columns of a silver record in
// domain.MeasurementFields order.
func (r *silverRecord) measurementSlots() []**float64 {
	return []**float64{
		&r.Temperature, &r.Humidity, &r.DewPoint, &r.PrecipitationProbability, &r.Precipitation,
		&r.CloudCover, &r.SurfacePressure, &r.WindSpeed, &r.WindGusts, &r.WindDirection,
	}
}

// featureSlots lists the feature columns in domain.FeatureNames order.
func (r *mlReadyRecord) featureSlots() []**float64 {
	return []**float64{
		&r.Temperature, &r.Humidity, &r.DewPoint, &r.PrecipitationProbability, &r.Precipitation,
		&r.CloudCover, &r.SurfacePressure, &r.WindSpeed, &r.WindGusts, &r.WindDirection,
		&r.TempLag1h, &r.HumidityLag1h, &r.WindLag1h,
		&r.TempLag2h, &r.HumidityLag2h, &r.WindLag2h,
		&r.TempLag3h, &r.HumidityLag3h, &r.WindLag3h,
		&r.TempChange1h, &r.HumidityChange1h, &r.WindChange1h,
	}
}

func (r *goldHourlyRecord) featureSlots() []**float64 {
	return []**float64{
		&r.Temperature, &r.Humidity, &r.DewPoint, &r.PrecipitationProbability, &r.Precipitation,
		&r.CloudCover, &r.SurfacePressure, &r.WindSpeed, &r.WindGusts, &r.WindDirection,
		&r.TempLag1h, &r.HumidityLag1h, &r.WindLag1h,
		&r.TempLag2h, &r.HumidityLag2h, &r.WindLag2h,
		&r.TempLag3h, &r.HumidityLag3h, &r.WindLag3h,
		&r.TempChange1h, &r.HumidityChange1h, &r.WindChange1h,
	}
}

func toSilverRecords(table domain.NormalizedTable) []silverRecord {
	out := make([]silverRecord, len(table.Rows))
	for i, row := range table.Rows {
		rec := silverRecord{
			Time:             toMicros(row.Time),
			Latitude:         table.Source.Latitude,
			Longitude:        table.Source.Longitude,
			Elevation:        table.Source.Elevation,
			Timezone:         table.Source.Timezone,
			UTCOffsetSeconds: int32(table.Source.UTCOffsetSeconds),
			LoadedAt:         table.LoadedAt.UnixMicro(),
		}
		for j, slot := range rec.measurementSlots() {
			*slot, _ = row.Value(domain.MeasurementFields[j])
		}
		out[i] = rec
	}
	return out
}

func fromSilverRecords(records []silverRecord) domain.NormalizedTable {
	var table domain.NormalizedTable
	if len(records) > 0 {
		first := records[0]
		table.Source = domain.SourceInfo{
			Latitude:         first.Latitude,
			Longitude:        first.Longitude,
			Elevation:        first.Elevation,
			Timezone:         first.Timezone,
			UTCOffsetSeconds: int(first.UTCOffsetSeconds),
		}
		table.LoadedAt = fromMicros(first.LoadedAt)
	}
	table.Rows = make([]domain.Observation, len(records))
	for i := range records {
		row := domain.Observation{Time: fromNullMicros(records[i].Time)}
		row.Temperature = records[i].Temperature
		row.Humidity = records[i].Humidity
		row.DewPoint = records[i].DewPoint
		row.PrecipitationProbability = records[i].PrecipitationProbability
		row.Precipitation = records[i].Precipitation
		row.CloudCover = records[i].CloudCover
		row.SurfacePressure = records[i].SurfacePressure
		row.WindSpeed = records[i].WindSpeed
		row.WindGusts = records[i].WindGusts
		row.WindDirection = records[i].WindDirection
		table.Rows[i] = row
	}
	return table
}

func toMLReadyRecords(table domain.MLReadyTable) []mlReadyRecord {
	out := make([]mlReadyRecord, len(table.Rows))
	for i, row := range table.Rows {
		rec := mlReadyRecord{
			Time:         toMicros(row.Time),
			RainNextHour: toInt32(row.RainNextHour),
			RainNext3h:   toInt32(row.RainNext3h),
		}
		copyFeatures(rec.featureSlots(), row.Features)
		out[i] = rec
	}
	return out
}

func fromMLReadyRecords(records []mlReadyRecord) domain.MLReadyTable {
	rows := make([]domain.MLReadyRow, len(records))
	for i := range records {
		rows[i] = domain.MLReadyRow{
			Time:         fromNullMicros(records[i].Time),
			Features:     readFeatures(records[i].featureSlots()),
			RainNextHour: fromInt32(records[i].RainNextHour),
			RainNext3h:   fromInt32(records[i].RainNext3h),
		}
	}
	return domain.MLReadyTable{Rows: rows}
}

func toGoldHourlyRecords(table domain.LabeledTable) []goldHourlyRecord {
	ml := domain.MLReady(table)
	out := make([]goldHourlyRecord, len(ml.Rows))
	for i, row := range ml.Rows {
		rec := goldHourlyRecord{
			Time:         toMicros(row.Time),
			LoadedAt:     table.LoadedAt.UnixMicro(),
			RainNextHour: toInt32(row.RainNextHour),
			RainNext3h:   toInt32(row.RainNext3h),
		}
		copyFeatures(rec.featureSlots(), row.Features)
		out[i] = rec
	}
	return out
}

func fromGoldHourlyRecords(records []goldHourlyRecord) domain.LabeledTable {
	var table domain.LabeledTable
	if len(records) > 0 {
		table.LoadedAt = fromMicros(records[0].LoadedAt)
	}
	table.Rows = make([]domain.LabeledRow, len(records))
	for i := range records {
		table.Rows[i] = domain.MLReadyRow{
			Time:         fromNullMicros(records[i].Time),
			Features:     readFeatures(records[i].featureSlots()),
			RainNextHour: fromInt32(records[i].RainNextHour),
			RainNext3h:   fromInt32(records[i].RainNext3h),
		}.Labeled()
	}
	return table
}

func toDailyRecords(table domain.DailyTable) []dailyRecord {
	out := make([]dailyRecord, len(table.Rows))
	for i, d := range table.Rows {
		out[i] = dailyRecord{
			Date:            int32(d.Date.Unix() / secondsPerDay),
			Hours:           int32(d.Hours),
			TemperatureMin:  d.TemperatureMin,
			TemperatureMax:  d.TemperatureMax,
			TemperatureMean: d.TemperatureMean,
			HumidityMin:     d.HumidityMin,
			HumidityMax:     d.HumidityMax,
			HumidityMean:    d.HumidityMean,
			WindSpeedMax:    d.WindSpeedMax,
			WindSpeedMean:   d.WindSpeedMean,
			Precipitation:   d.Precipitation,
			CloudCover:      d.CloudCover,
			SurfacePressure: d.SurfacePressure,
		}
	}
	return out
}

func fromDailyRecords(records []dailyRecord) domain.DailyTable {
	rows := make([]domain.DailyAggregate, len(records))
	for i, r := range records {
		rows[i] = domain.DailyAggregate{
			Date:            time.Unix(int64(r.Date)*secondsPerDay, 0).UTC(),
			Hours:           int(r.Hours),
			TemperatureMin:  r.TemperatureMin,
			TemperatureMax:  r.TemperatureMax,
			TemperatureMean: r.TemperatureMean,
			HumidityMin:     r.HumidityMin,
			HumidityMax:     r.HumidityMax,
			HumidityMean:    r.HumidityMean,
			WindSpeedMax:    r.WindSpeedMax,
			WindSpeedMean:   r.WindSpeedMean,
			Precipitation:   r.Precipitation,
			CloudCover:      r.CloudCover,
			SurfacePressure: r.SurfacePressure,
		}
	}
	return domain.DailyTable{Rows: rows}
}

const secondsPerDay = 24 * 60 * 60

func copyFeatures(slots []**float64, features []*float64) {
	for j, slot := range slots {
		if j < len(features) {
			*slot = features[j]
		}
	}
}

func readFeatures(slots []**float64) []*float64 {
	out := make([]*float64, len(slots))
	for j, slot := range slots {
		out[j] = *slot
	}
	return out
}

func toMicros(t domain.NullTime) *int64 {
	if !t.Valid {
		return nil
	}
	v := t.Time.UnixMicro()
	return &v
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func fromNullMicros(v *int64) domain.NullTime {
	if v == nil {
		return domain.NullTime{}
	}
	return domain.ValidTime(fromMicros(*v))
}

func toInt32(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}

func fromInt32(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
