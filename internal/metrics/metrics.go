package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudshield_predictions_scored_total",
		Help: "Total number of transactions scored, labelled by risk level.",
	}, []string{"risk_level"})

	FraudDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudshield_fraud_detected_total",
		Help: "Total number of scored transactions flagged as fraud.",
	})

	ScoringFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudshield_scoring_failures_total",
		Help: "Total number of rejected scoring requests, labelled by error kind.",
	}, []string{"kind"})

	ScoringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fraudshield_scoring_duration_ms",
		Help:    "End-to-end scoring latency in milliseconds, persistence included.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500},
	})

	HistoryWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudshield_history_write_failures_total",
		Help: "Total number of scored predictions that could not be persisted.",
	})

	HistoryCorruptRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudshield_history_corrupt_recovered_total",
		Help: "Total number of times an unreadable history file was reset to empty.",
	})

	HistoryRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fraudshield_history_records",
		Help: "Number of records in the history file after the last write.",
	})

	ClassifierClassFallback = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudshield_classifier_class_fallback_total",
		Help: "Times a model without class ordering was loaded and column 1 assumed.",
	})

	FraudThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fraudshield_fraud_threshold",
		Help: "Currently active is_fraud probability threshold.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudshield_http_requests_total",
		Help: "HTTP requests served, labelled by route pattern and status code.",
	}, []string{"route", "status"})
)
