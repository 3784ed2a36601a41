package risk

import (
	"fmt"
	"strings"
)

// Level is the discrete risk band derived from a fraud probability.
type Level string

const (
	Low      Level = "LOW"
	Medium   Level = "MEDIUM"
	High     Level = "HIGH"
	Critical Level = "CRITICAL"
)

// Band lower bounds on probability. Intervals are half-open: [lo, next).
const (
	mediumFrom   = 0.20
	highFrom     = 0.40
	criticalFrom = 0.60
)

// Levels returns all levels from lowest to highest.
func Levels() []Level {
	return []Level{Low, Medium, High, Critical}
}

// ParseLevel reconstructs a Level from its string form (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case Low, Medium, High, Critical:
		return l, nil
	default:
		return "", fmt.Errorf("invalid risk level: %q", s)
	}
}

// LevelFor bands a probability into a Level.
func LevelFor(p float64) Level {
	switch {
	case p < mediumFrom:
		return Low
	case p < highFrom:
		return Medium
	case p < criticalFrom:
		return High
	default:
		return Critical
	}
}

func (l Level) String() string { return string(l) }
