// Command genmock generates a synthetic Open-Meteo hourly payload for local
// runs and fixtures. It feeds the result through the real domain chain and
// prints label statistics so the fixture can be checked at a glance.
//
// Usage:
//
//	go run ./cmd/genmock -hours 72 -seed 7 -out data/mock/berlin_72h.json
//	go run ./cmd/genmock -hours 48 -gaps 0.05 | go run ./cmd/medallion -ingest /dev/stdin
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

type payload struct {
	Latitude         float64           `json:"latitude"`
	Longitude        float64           `json:"longitude"`
	Elevation        float64           `json:"elevation"`
	Timezone         string            `json:"timezone"`
	UTCOffsetSeconds int               `json:"utc_offset_seconds"`
	HourlyUnits      map[string]string `json:"hourly_units"`
	Hourly           hourly            `json:"hourly"`
}

type hourly struct {
	Time                     []string   `json:"time"`
	Temperature              []*float64 `json:"temperature_2m"`
	Humidity                 []*float64 `json:"relative_humidity_2m"`
	DewPoint                 []*float64 `json:"dew_point_2m"`
	PrecipitationProbability []*float64 `json:"precipitation_probability"`
	Precipitation            []*float64 `json:"precipitation"`
	CloudCover               []*float64 `json:"cloud_cover"`
	SurfacePressure          []*float64 `json:"surface_pressure"`
	WindSpeed                []*float64 `json:"wind_speed_10m"`
	WindGusts                []*float64 `json:"wind_gusts_10m"`
	WindDirection            []*float64 `json:"wind_direction_10m"`
}

type options struct {
	start    time.Time
	hours    int
	lat, lon float64
	seed     uint64
	gaps     float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	start := flag.String("start", "2024-03-01", "first hour (UTC date or RFC 3339)")
	hours := flag.Int("hours", 72, "number of hourly rows")
	lat := flag.Float64("lat", 52.52, "latitude")
	lon := flag.Float64("lon", 13.41, "longitude")
	seed := flag.Uint64("seed", 1, "random seed")
	gaps := flag.Float64("gaps", 0, "fraction of measurements left missing (0-1)")
	out := flag.String("out", "", "output path (default stdout)")
	flag.Parse()

	t0, err := parseStart(*start)
	if err != nil {
		return err
	}
	if *hours <= 0 {
		return fmt.Errorf("-hours must be positive, got %d", *hours)
	}
	if *gaps < 0 || *gaps >= 1 {
		return fmt.Errorf("-gaps must be in [0, 1), got %g", *gaps)
	}

	p := generate(options{start: t0, hours: *hours, lat: *lat, lon: *lon, seed: *seed, gaps: *gaps})
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if err := write(*out, data); err != nil {
		return err
	}
	return printStats(os.Stderr, data)
}

func parseStart(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid -start %q", s)
}

// generate builds a diurnal temperature cycle with a slow pressure drift.
// Rain falls in short bursts while pressure is below its mean.
func generate(o options) payload {
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
	h := hourly{}

	maybe := func(v float64) *float64 {
		if o.gaps > 0 && rng.Float64() < o.gaps {
			return nil
		}
		v = math.Round(v*100) / 100
		return &v
	}

	raining := 0
	for i := range o.hours {
		t := o.start.Add(time.Duration(i) * time.Hour)
		phase := 2 * math.Pi * float64(t.Hour()-15) / 24
		pressure := 1008 + 8*math.Sin(2*math.Pi*float64(i)/96) + rng.NormFloat64()

		if raining == 0 && pressure < 1006 && rng.Float64() < 0.25 {
			raining = 1 + rng.IntN(4)
		}
		precip := 0.0
		if raining > 0 {
			precip = 0.1 + rng.ExpFloat64()*0.6
			raining--
		}

		temp := 6 + 5*math.Cos(phase) + rng.NormFloat64()*0.5
		humidity := math.Min(100, 75-10*math.Cos(phase)+precip*15+rng.NormFloat64()*2)
		wind := math.Abs(3 + 1.5*math.Sin(phase) + rng.NormFloat64())
		cloud := math.Min(100, math.Max(0, 50+(1008-pressure)*8+rng.NormFloat64()*10))

		h.Time = append(h.Time, t.Format("2006-01-02T15:04"))
		h.Temperature = append(h.Temperature, maybe(temp))
		h.Humidity = append(h.Humidity, maybe(humidity))
		h.DewPoint = append(h.DewPoint, maybe(temp-(100-humidity)/5))
		h.PrecipitationProbability = append(h.PrecipitationProbability, maybe(math.Round(cloud*0.8)))
		h.Precipitation = append(h.Precipitation, maybe(precip))
		h.CloudCover = append(h.CloudCover, maybe(math.Round(cloud)))
		h.SurfacePressure = append(h.SurfacePressure, maybe(pressure))
		h.WindSpeed = append(h.WindSpeed, maybe(wind))
		h.WindGusts = append(h.WindGusts, maybe(wind*1.8+rng.Float64()))
		h.WindDirection = append(h.WindDirection, maybe(math.Mod(240+rng.NormFloat64()*40+360, 360)))
	}

	return payload{
		Latitude:  o.lat,
		Longitude: o.lon,
		Elevation: 38,
		Timezone:  "GMT",
		HourlyUnits: map[string]string{
			domain.FieldTime:          "iso8601",
			domain.FieldTemperature:   "°C",
			domain.FieldPrecipitation: "mm",
			domain.FieldWindSpeed:     "km/h",
		},
		Hourly: h,
	}
}

func write(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	log.Printf("wrote payload: %s", path)
	return nil
}

func printStats(w io.Writer, data []byte) error {
	// Fixed clock so repeated runs print identical provenance.
	domain.SetClock(clockwork.NewFakeClockAt(time.Unix(0, 0)))
	defer domain.SetClock(nil)

	silver, err := domain.Normalize(data)
	if err != nil {
		return fmt.Errorf("generated payload does not normalize: %w", err)
	}
	labeled := domain.AddLabels(domain.BuildHourly(domain.CoerceTimestamps(silver)))
	daily := domain.BuildDaily(silver)

	var rainy, nextHour, next3h, unlabeled int
	for _, row := range labeled.Rows {
		if row.Precipitation != nil && *row.Precipitation > domain.RainThreshold {
			rainy++
		}
		switch {
		case row.RainNextHour == nil:
			unlabeled++
		case *row.RainNextHour == 1:
			nextHour++
		}
		if row.RainNext3h != nil && *row.RainNext3h == 1 {
			next3h++
		}
	}

	_, err = fmt.Fprintf(w, "rows: %d, days: %d, rainy hours: %d, rain_next_hour=1: %d, rain_next_3h=1: %d, unlabeled: %d\n",
		len(labeled.Rows), len(daily.Rows), rainy, nextHour, next3h, unlabeled)
	return err
}
