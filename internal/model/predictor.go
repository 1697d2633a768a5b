package model

import (
	"math"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
)

// Predictor scores feature maps with a loaded artifact.
type Predictor struct {
	artifact *Artifact
}

// NewPredictor wraps a validated artifact.
func NewPredictor(a *Artifact) *Predictor {
	return &Predictor{artifact: a}
}

// Artifact returns the model being served.
func (p *Predictor) Artifact() *Artifact { return p.artifact }

// Predict returns the positive-class probability for one input. Features are
// reordered to the artifact's list; extra keys are ignored and any missing
// key fails with a *domain.FeatureMismatchError.
func (p *Predictor) Predict(features map[string]float64) (float64, error) {
	x, err := domain.SelectFeatures(features, p.artifact.Features)
	if err != nil {
		return 0, err
	}
	z := p.artifact.Intercept
	for i, v := range x {
		z += p.artifact.Coefficients[i] * v
	}
	return sigmoid(z), nil
}

// PredictRow scores an ml-ready row. A missing feature value counts as
// absent.
func (p *Predictor) PredictRow(row domain.MLReadyRow) (float64, error) {
	return p.Predict(row.FeatureMap())
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
