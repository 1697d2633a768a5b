// Package model loads trained rain classifiers and scores feature vectors
// against them. Models are trained elsewhere; this package only consumes the
// exported artifact.
package model

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Artifact is an exported logistic regression model together with the
// ordered feature list it was trained on.
type Artifact struct {
	Name         string    `yaml:"name"`
	Target       string    `yaml:"target"`
	Features     []string  `yaml:"features"`
	Intercept    float64   `yaml:"intercept"`
	Coefficients []float64 `yaml:"coefficients"`
}

// Load reads and validates an artifact from a YAML file.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates an artifact.
func Parse(data []byte) (*Artifact, error) {
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks that the artifact can score inputs.
func (a *Artifact) Validate() error {
	if len(a.Features) == 0 {
		return errors.New("model artifact: no features")
	}
	if len(a.Features) != len(a.Coefficients) {
		return fmt.Errorf("model artifact: %d features but %d coefficients", len(a.Features), len(a.Coefficients))
	}
	seen := make(map[string]bool, len(a.Features))
	for _, f := range a.Features {
		if seen[f] {
			return fmt.Errorf("model artifact: duplicate feature %q", f)
		}
		seen[f] = true
	}
	return nil
}

// Uses reports whether the model reads the named feature.
func (a *Artifact) Uses(feature string) bool {
	return slices.Contains(a.Features, feature)
}
