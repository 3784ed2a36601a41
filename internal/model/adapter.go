package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/gyaneshwarpardhi/fraudshield/internal/feature"
	"github.com/gyaneshwarpardhi/fraudshield/internal/metrics"
)

// ErrModelUnavailable means no usable model could be loaded. The service must
// not serve traffic without one.
var ErrModelUnavailable = errors.New("model unavailable")

// InferenceError is returned when a well-formed vector could not be scored.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return "inference failed: " + e.Err.Error() }
func (e *InferenceError) Unwrap() error { return e.Err }

// Model is a pretrained binary classifier returning one probability per class.
type Model interface {
	PredictProba(x []float64) ([]float64, error)
}

// ClassLabeler is implemented by models that know their output column order.
type ClassLabeler interface {
	Classes() []string
}

// fallbackColumn is used when a model does not expose its class order.
const fallbackColumn = 1

// Adapter isolates callers from the model's output layout.
type Adapter struct {
	model    Model
	positive int
	logger   *slog.Logger
}

// NewAdapter resolves which output column is the fraud class.
func NewAdapter(m Model, logger *slog.Logger) (*Adapter, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", ErrModelUnavailable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{model: m, positive: fallbackColumn, logger: logger}

	labeler, ok := m.(ClassLabeler)
	if !ok || len(labeler.Classes()) == 0 {
		metrics.ClassifierClassFallback.Inc()
		logger.Warn("model does not expose class ordering; assuming fraud is column 1",
			"column", fallbackColumn)
		return a, nil
	}

	classes := labeler.Classes()
	idx := positiveIndex(classes)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no fraud class among %v", ErrModelUnavailable, classes)
	}
	a.positive = idx
	logger.Debug("resolved fraud class column", "column", idx, "classes", classes)
	return a, nil
}

// PositiveColumn returns the output column read as the fraud probability.
func (a *Adapter) PositiveColumn() int { return a.positive }

// ProbabilityOfFraud scores v. A panic inside the model is reported as an
// InferenceError.
func (a *Adapter) ProbabilityOfFraud(ctx context.Context, v feature.Vector) (p float64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, &InferenceError{Err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			p, err = 0, &InferenceError{Err: fmt.Errorf("model panic: %v", r)}
		}
	}()

	proba, err := a.model.PredictProba(v.Slice())
	if err != nil {
		return 0, &InferenceError{Err: err}
	}
	if a.positive >= len(proba) {
		return 0, &InferenceError{Err: fmt.Errorf("model returned %d columns, fraud column is %d", len(proba), a.positive)}
	}
	p = proba[a.positive]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, &InferenceError{Err: fmt.Errorf("probability %v outside [0,1]", p)}
	}
	return p, nil
}

func positiveIndex(classes []string) int {
	for i, c := range classes {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "1", "1.0", "true", "fraud", "positive":
			return i
		}
	}
	return -1
}
