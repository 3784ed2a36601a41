package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/fraudshield/internal/factor"
	"github.com/gyaneshwarpardhi/fraudshield/internal/risk"
)

// Validate checks the config for:
//   - required fields
//   - a fraud threshold strictly between 0 and the LOW/MEDIUM boundary
//   - factor rules that compile
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if cfg.Model.Path == "" {
		errs = append(errs, "model.path is required")
	}
	if cfg.History.Path == "" {
		errs = append(errs, "history.path is required")
	}
	if t := cfg.Scoring.FraudThreshold; t <= 0 || t >= risk.MaxFraudThreshold {
		errs = append(errs, fmt.Sprintf("scoring.fraud_threshold %v must be > 0 and < %v", t, risk.MaxFraudThreshold))
	}
	if _, err := cfg.FactorSet(); err != nil {
		errs = append(errs, err.Error())
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// FactorSet compiles the configured factor rules.
func (c *Config) FactorSet() (*factor.Set, error) {
	rules := make([]factor.Rule, 0, len(c.Factors))
	for _, f := range c.Factors {
		rules = append(rules, factor.Rule{Feature: f.Feature, Impact: f.Impact, When: f.When})
	}
	return factor.Compile(rules)
}

// Classifier returns the risk classifier for the configured threshold.
func (c *Config) Classifier() risk.Classifier {
	return risk.NewClassifier(c.Scoring.FraudThreshold)
}
