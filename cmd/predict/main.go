// Command predict scores feature vectors with an exported rain model.
//
// The input is a JSON object mapping feature names to values, read from
// -input or stdin. With -latest it scores every row of the newest ml-ready
// snapshot instead.
//
// Usage:
//
//	echo '{"temperature_2m": 4.5, ...}' | go run ./cmd/predict -model models/rain.yaml
//	go run ./cmd/predict -model models/rain.yaml -latest
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/parquet"
	"github.com/couchcryptid/rain-forecast-etl/internal/config"
	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/couchcryptid/rain-forecast-etl/internal/model"
	"github.com/couchcryptid/rain-forecast-etl/internal/report"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(stdin io.Reader, stdout io.Writer) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	modelPath := flag.String("model", cfg.ModelArtifact, "model artifact (YAML)")
	input := flag.String("input", "-", "feature JSON file, - for stdin")
	latest := flag.Bool("latest", false, "score the latest ml-ready snapshot")
	dataDir := flag.String("data-dir", cfg.DataDir, "tier snapshot directory used with -latest")
	flag.Parse()

	if *modelPath == "" {
		flag.Usage()
		return errors.New("a model artifact is required: pass -model or set MODEL_ARTIFACT")
	}
	artifact, err := model.Load(*modelPath)
	if err != nil {
		return err
	}
	predictor := model.NewPredictor(artifact)

	if *latest {
		return scoreLatest(stdout, predictor, *dataDir, cfg.ParquetCompression)
	}

	features, err := readFeatures(*input, stdin)
	if err != nil {
		return err
	}
	p, err := predictor.Predict(features)
	if err != nil {
		return err
	}
	return writePrediction(stdout, artifact, features, p)
}

func writePrediction(w io.Writer, artifact *model.Artifact, features map[string]float64, p float64) error {
	if _, err := fmt.Fprintf(w, "Rain probability next hour: %.2f%%\n", p*100); err != nil {
		return err
	}
	if ignored := ignoredFeatures(artifact, features); len(ignored) > 0 {
		_, err := fmt.Fprintf(w, "Ignored by %s: %s\n", artifact.Name, strings.Join(ignored, ", "))
		return err
	}
	return nil
}

// ignoredFeatures lists input keys the model does not read, sorted.
func ignoredFeatures(artifact *model.Artifact, features map[string]float64) []string {
	var out []string
	for _, name := range slices.Sorted(maps.Keys(features)) {
		if !artifact.Uses(name) {
			out = append(out, name)
		}
	}
	return out
}

func readFeatures(path string, stdin io.Reader) (map[string]float64, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var features map[string]float64
	if err := json.NewDecoder(r).Decode(&features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return features, nil
}

func scoreLatest(w io.Writer, predictor *model.Predictor, dataDir, compression string) error {
	store, err := parquet.NewStore(dataDir, compression)
	if err != nil {
		return err
	}
	snap, err := store.Latest(domain.TierMLReady)
	if err != nil {
		return err
	}
	table, err := store.ReadMLReady(snap)
	if err != nil {
		return err
	}

	out := report.Table{Header: []string{"time", "rain_probability", "note"}}
	for _, row := range table.Rows {
		t := ""
		if row.Time.Valid {
			t = row.Time.Time.UTC().Format("2006-01-02 15:04")
		}
		p, err := predictor.PredictRow(row)
		if err != nil {
			out.Rows = append(out.Rows, []string{t, "", err.Error()})
			continue
		}
		out.Rows = append(out.Rows, []string{t, strconv.FormatFloat(p*100, 'f', 2, 64) + "%", ""})
	}

	if _, err := fmt.Fprintf(w, "%s (%s)\n\n", snap.Path, predictor.Artifact().Name); err != nil {
		return err
	}
	return out.Render(w)
}
