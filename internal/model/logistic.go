package model

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/fraudshield/internal/feature"
)

// Artifact is the on-disk form of a logistic-regression classifier. JSON
// artifacts parse as well since yaml.v3 accepts JSON documents.
type Artifact struct {
	Version      string    `yaml:"version"`
	Classes      []string  `yaml:"classes"`
	FeatureNames []string  `yaml:"feature_names"`
	Coefficients []float64 `yaml:"coefficients"`
	Intercept    float64   `yaml:"intercept"`
	Scaler       *Scaler   `yaml:"scaler,omitempty"`
}

// Scaler standardises inputs as (x - mean) / scale before the linear term.
type Scaler struct {
	Mean  []float64 `yaml:"mean"`
	Scale []float64 `yaml:"scale"`
}

// Logistic is a binary logistic-regression Model.
type Logistic struct {
	art Artifact
}

// LoadLogistic reads and checks an artifact. Every failure wraps
// ErrModelUnavailable.
func LoadLogistic(path string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrModelUnavailable, path, err)
	}
	var art Artifact
	if err := yaml.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrModelUnavailable, path, err)
	}
	m, err := NewLogistic(art)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// NewLogistic checks that art matches the normalizer's vector layout.
func NewLogistic(art Artifact) (*Logistic, error) {
	if len(art.Coefficients) != feature.Size {
		return nil, fmt.Errorf("%w: %d coefficients, want %d", ErrModelUnavailable, len(art.Coefficients), feature.Size)
	}
	// A model fitted on another column order would score silently wrong.
	if len(art.FeatureNames) != feature.Size {
		return nil, fmt.Errorf("%w: %d feature names, want %d", ErrModelUnavailable, len(art.FeatureNames), feature.Size)
	}
	for i, name := range art.FeatureNames {
		if name != feature.Names[i] {
			return nil, fmt.Errorf("%w: feature %d is %q, want %q", ErrModelUnavailable, i, name, feature.Names[i])
		}
	}
	if len(art.Classes) != 0 && len(art.Classes) != 2 {
		return nil, fmt.Errorf("%w: binary model needs 2 classes, got %d", ErrModelUnavailable, len(art.Classes))
	}
	if s := art.Scaler; s != nil {
		if len(s.Mean) != feature.Size || len(s.Scale) != feature.Size {
			return nil, fmt.Errorf("%w: scaler must have %d means and scales", ErrModelUnavailable, feature.Size)
		}
		for i, sc := range s.Scale {
			if sc == 0 {
				return nil, fmt.Errorf("%w: scaler scale for %s is zero", ErrModelUnavailable, feature.Names[i])
			}
		}
	}
	return &Logistic{art: art}, nil
}

// Version is the artifact's declared version.
func (l *Logistic) Version() string { return l.art.Version }

// Classes implements ClassLabeler. It is empty when the artifact omits classes.
func (l *Logistic) Classes() []string { return l.art.Classes }

// PredictProba returns [P(class0), P(class1)] in artifact class order, with the
// linear term modelling classes[1].
func (l *Logistic) PredictProba(x []float64) ([]float64, error) {
	if len(x) != len(l.art.Coefficients) {
		return nil, fmt.Errorf("input has %d features, want %d", len(x), len(l.art.Coefficients))
	}
	z := l.art.Intercept
	for i, xi := range x {
		if s := l.art.Scaler; s != nil {
			xi = (xi - s.Mean[i]) / s.Scale[i]
		}
		z += xi * l.art.Coefficients[i]
	}
	p1 := 1 / (1 + math.Exp(-z))
	return []float64{1 - p1, p1}, nil
}
