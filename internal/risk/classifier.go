package risk

// DefaultFraudThreshold is the is_fraud cut-off used when none is configured.
// It must stay below the LOW/MEDIUM boundary.
const DefaultFraudThreshold = 0.05

// MaxFraudThreshold is the exclusive upper bound for a configured threshold.
const MaxFraudThreshold = mediumFrom

// Classification is the outcome of banding a probability.
type Classification struct {
	Level   Level
	IsFraud bool
}

// Classifier turns a probability into a Classification. The zero value uses
// DefaultFraudThreshold.
type Classifier struct {
	threshold float64
}

// NewClassifier returns a Classifier flagging fraud at p >= threshold.
// A non-positive threshold selects DefaultFraudThreshold.
func NewClassifier(threshold float64) Classifier {
	return Classifier{threshold: threshold}
}

// Threshold returns the effective is_fraud threshold.
func (c Classifier) Threshold() float64 {
	if c.threshold <= 0 {
		return DefaultFraudThreshold
	}
	return c.threshold
}

// Classify is pure and never fails.
func (c Classifier) Classify(p float64) Classification {
	return Classification{
		Level:   LevelFor(p),
		IsFraud: p >= c.Threshold(),
	}
}
