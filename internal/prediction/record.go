package prediction

import (
	"encoding/json"
	"math"
	"time"

	"github.com/gyaneshwarpardhi/fraudshield/internal/risk"
)

// TimestampLayout is fixed-width so that string order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Factor describes one input that drove a score. Informational only.
type Factor struct {
	Feature string  `json:"feature"`
	Impact  string  `json:"impact"`
	Value   float64 `json:"value"`
}

// Record is one scoring decision. It is never mutated after insertion.
type Record struct {
	ID               string     `json:"id"`
	TransactionID    string     `json:"transaction_id"`
	FraudProbability float64    `json:"fraud_probability"`
	RiskScore        Score      `json:"risk_score"`
	RiskLevel        risk.Level `json:"risk_level"`
	IsFraud          bool       `json:"is_fraud"`
	Confidence       float64    `json:"confidence"`
	Factors          []Factor   `json:"factors"`
	Timestamp        string     `json:"timestamp"`
	Amount           float64    `json:"amount"`
	Time             float64    `json:"time"`
	SequenceNumber   int64      `json:"sequence_number,omitempty"`
	SavedAt          string     `json:"saved_at,omitempty"`
}

// Score is the 0-100 integer risk score.
type Score int

// ScoreFor derives round(p*100), halves to even.
func ScoreFor(p float64) Score {
	return Score(math.RoundToEven(p * 100))
}

// UnmarshalJSON accepts fractional scores written by older versions of the
// history file and rounds them.
func (s *Score) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*s = Score(math.RoundToEven(f))
	return nil
}

// Confidence is max(p, 1-p).
func Confidence(p float64) float64 {
	return math.Max(p, 1-p)
}
