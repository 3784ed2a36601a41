package scoring

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/fraudshield/internal/factor"
	"github.com/gyaneshwarpardhi/fraudshield/internal/feature"
	"github.com/gyaneshwarpardhi/fraudshield/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudshield/internal/model"
	"github.com/gyaneshwarpardhi/fraudshield/internal/prediction"
	"github.com/gyaneshwarpardhi/fraudshield/internal/risk"
	"github.com/gyaneshwarpardhi/fraudshield/internal/traces"
)

// probabilityPlaces is the precision of stored probabilities.
const probabilityPlaces = 4

// Scorer returns P(fraud) for a normalized vector.
type Scorer interface {
	ProbabilityOfFraud(ctx context.Context, v feature.Vector) (float64, error)
}

// Recorder persists a scored record and returns it with store metadata.
type Recorder interface {
	Insert(ctx context.Context, rec prediction.Record) (prediction.Record, error)
}

// Settings are the hot-reloadable parts of scoring.
type Settings struct {
	Classifier risk.Classifier
	Factors    *factor.Set
}

// Service turns raw features into persisted prediction records.
type Service struct {
	scorer   Scorer
	recorder Recorder
	settings atomic.Pointer[Settings]
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service. A nil Factors set reports no factors.
func New(scorer Scorer, recorder Recorder, settings Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{scorer: scorer, recorder: recorder, logger: logger, now: time.Now}
	s.UpdateSettings(settings)
	return s
}

// UpdateSettings atomically replaces the threshold and factor rules.
func (s *Service) UpdateSettings(st Settings) {
	s.settings.Store(&st)
	metrics.FraudThreshold.Set(st.Classifier.Threshold())
}

// Threshold is the active is_fraud threshold.
func (s *Service) Threshold() float64 {
	return s.settings.Load().Classifier.Threshold()
}

// Score normalizes raw, scores it, classifies the probability and records
// the result.
//
// Validation and inference errors are returned as-is and nothing is stored.
// A failed insert does not fail the call: the unsequenced record is returned
// and the failure is logged and counted.
func (s *Service) Score(ctx context.Context, raw map[string]any) (*prediction.Record, error) {
	start := time.Now()
	ctx, span := traces.StartSpan(ctx, "scoring.Score")
	defer span.End()

	v, err := feature.Normalize(raw)
	if err != nil {
		metrics.ScoringFailures.WithLabelValues("validation").Inc()
		traces.RecordError(span, err)
		return nil, err
	}

	p, err := s.scorer.ProbabilityOfFraud(ctx, v)
	if err != nil {
		kind := "inference"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = "canceled"
		}
		metrics.ScoringFailures.WithLabelValues(kind).Inc()
		s.logger.Error("scoring failed", "err", err)
		traces.RecordError(span, err)
		return nil, err
	}
	p = round(p, probabilityPlaces)

	st := s.settings.Load()
	cls := st.Classifier.Classify(p)

	factors := []prediction.Factor{}
	if st.Factors != nil {
		factors = st.Factors.Explain(v, p, s.logger)
	}

	id := uuid.New().String()
	rec := prediction.Record{
		ID:               id,
		TransactionID:    id,
		FraudProbability: p,
		RiskScore:        prediction.ScoreFor(p),
		RiskLevel:        cls.Level,
		IsFraud:          cls.IsFraud,
		Confidence:       round(prediction.Confidence(p), probabilityPlaces),
		Factors:          factors,
		Timestamp:        prediction.FormatTimestamp(s.now()),
		Amount:           v.Amount(),
		Time:             v.Time(),
	}
	span.SetAttributes(
		traces.TransactionID(id),
		traces.FraudProbability(p),
		traces.RiskLevel(cls.Level.String()),
	)

	metrics.PredictionsScored.WithLabelValues(cls.Level.String()).Inc()
	if cls.IsFraud {
		metrics.FraudDetected.Inc()
	}

	// A client that disconnects after scoring must not lose the record.
	saved, err := s.recorder.Insert(context.WithoutCancel(ctx), rec)
	if err != nil {
		metrics.HistoryWriteFailures.Inc()
		s.logger.Error("could not save prediction to history",
			"transaction_id", id, "err", err)
		saved = rec
	}

	metrics.ScoringDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Debug("transaction scored",
		"transaction_id", id,
		"probability", p,
		"risk_level", cls.Level,
		"is_fraud", cls.IsFraud,
		"sequence_number", saved.SequenceNumber,
	)
	return &saved, nil
}

func round(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).RoundBank(places).InexactFloat64()
}

// Compile-time interface check
var _ Scorer = (*model.Adapter)(nil)
