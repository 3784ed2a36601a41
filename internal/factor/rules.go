package factor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gyaneshwarpardhi/fraudshield/internal/feature"
	"github.com/gyaneshwarpardhi/fraudshield/internal/prediction"
)

// Rule declares a factor to report, optionally only when When holds.
type Rule struct {
	Feature string
	Impact  string
	When    string
}

// DefaultRules reproduce the factors reported before rules were configurable.
func DefaultRules() []Rule {
	return []Rule{
		{Feature: "Amount", Impact: "High"},
		{Feature: "Time", Impact: "Medium"},
	}
}

type compiledRule struct {
	slot   int
	impact string
	when   Expr // nil = always
}

// Set is an immutable, compiled list of rules.
type Set struct {
	rules []compiledRule
}

// Compile checks feature names and parses every When expression once.
func Compile(rules []Rule) (*Set, error) {
	s := &Set{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		slot, ok := feature.Slot(r.Feature)
		if !ok {
			return nil, fmt.Errorf("factor[%d]: unknown feature %q", i, r.Feature)
		}
		if strings.TrimSpace(r.Impact) == "" {
			return nil, fmt.Errorf("factor[%d] %s: impact is required", i, r.Feature)
		}
		cr := compiledRule{slot: slot, impact: r.Impact}
		if strings.TrimSpace(r.When) != "" {
			e, err := Parse(r.When)
			if err != nil {
				return nil, fmt.Errorf("factor[%d] %s: parse %q: %w", i, r.Feature, r.When, err)
			}
			for _, name := range Identifiers(e) {
				if !knownIdent(name) {
					return nil, fmt.Errorf("factor[%d] %s: unknown identifier %q in %q", i, r.Feature, name, r.When)
				}
			}
			cr.when = e
		}
		s.rules = append(s.rules, cr)
	}
	return s, nil
}

func knownIdent(name string) bool {
	if strings.EqualFold(name, "probability") {
		return true
	}
	_, ok := feature.Slot(name)
	return ok
}

// Len is the number of compiled rules.
func (s *Set) Len() int { return len(s.rules) }

// env exposes a vector plus the scored probability to expressions.
type env struct {
	v feature.Vector
	p float64
}

func (e env) Lookup(name string) (float64, bool) {
	if strings.EqualFold(name, "probability") {
		return e.p, true
	}
	return e.v.Get(name)
}

// Explain returns the factors whose conditions hold, in rule order. A rule
// that fails to evaluate is skipped.
func (s *Set) Explain(v feature.Vector, p float64, logger *slog.Logger) []prediction.Factor {
	out := make([]prediction.Factor, 0, len(s.rules))
	e := env{v: v, p: p}
	for _, r := range s.rules {
		if r.when != nil {
			ok, err := Eval(r.when, e)
			if err != nil {
				if logger != nil {
					logger.Debug("factor rule skipped", "feature", feature.Names[r.slot], "err", err)
				}
				continue
			}
			if !ok {
				continue
			}
		}
		out = append(out, prediction.Factor{
			Feature: feature.Names[r.slot],
			Impact:  r.impact,
			Value:   v[r.slot],
		})
	}
	return out
}
